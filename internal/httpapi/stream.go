package httpapi

import (
	"bufio"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/foliolab/enrich/internal/pipeline"
)

// StreamEvents serves a job's progress events over Server-Sent Events.
// The stream ends when the job reaches a terminal state (the
// orchestrator closes the subscription) or the client disconnects. A
// job already finished before the subscription gets a single terminal
// event and an immediate end of stream.
func (h *Handlers) StreamEvents(c *fiber.Ctx) error {
	jobID := c.Params("id")
	if !h.store.Exists(jobID) {
		return writeError(c, fiber.StatusNotFound, "not_found", "job not found")
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	ch := h.bus.Subscribe(jobID)

	// If the job finished before we subscribed, no publisher will ever
	// close this channel; emit the terminal status ourselves and end.
	var terminal *pipeline.Event
	if result, err := h.store.Load(jobID); err == nil && result.Status.Terminal() {
		h.bus.Unsubscribe(jobID, ch)
		ch = nil
		terminal = &pipeline.Event{Stage: "orchestrator", Event: "job." + string(result.Status), Payload: string(result.Status)}
	}

	bus := h.bus
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer func() {
			if ch != nil {
				bus.Unsubscribe(jobID, ch)
			}
		}()
		if terminal != nil {
			writeSSE(w, *terminal)
			return
		}
		for ev := range ch {
			if err := writeSSE(w, ev); err != nil {
				return
			}
		}
	}))
	return nil
}

func writeSSE(w *bufio.Writer, ev pipeline.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Event, data); err != nil {
		return err
	}
	return w.Flush()
}
