package stream

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

func RegisterRoutes(r fiber.Router, hub *Hub) {
	r.Get("/ws/:table", websocket.New(func(c *websocket.Conn) {
		serve(hub, c, c.Params("table"))
	}))

	r.Get("/ws/:table/:id", websocket.New(func(c *websocket.Conn) {
		serve(hub, c, c.Params("table")+":"+c.Params("id"))
	}))
}

func serve(hub *Hub, c *websocket.Conn, topic string) {
	client := hub.Subscribe(topic)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}

	// unsubscribing closes Send, which unblocks the writer even when the
	// topic is quiet
	hub.Unsubscribe(client)
	<-done
}
