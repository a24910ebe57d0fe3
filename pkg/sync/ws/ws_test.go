package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	gosync "sync"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/chrysalislabs/chrysalis/pkg/memory"
	"github.com/chrysalislabs/chrysalis/pkg/sync"
	"github.com/chrysalislabs/chrysalis/pkg/sync/ws"
)

// hubStub is a minimal websocket peer: it records pushed documents and
// answers pulls with a canned set.
type hubStub struct {
	mu       gosync.Mutex
	received []*memory.Document
	served   []*memory.Document
	reject   bool
}

func (h *hubStub) handler() http.HandlerFunc {
	upgrader := websocket.Upgrader{}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var frame ws.Frame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}

			h.mu.Lock()
			reject := h.reject
			served := h.served
			h.mu.Unlock()

			if reject {
				_ = conn.WriteJSON(ws.Frame{Type: "error", Error: "not authorized"})
				continue
			}

			switch frame.Type {
			case "push":
				h.mu.Lock()
				h.received = append(h.received, frame.Documents...)
				h.mu.Unlock()
				_ = conn.WriteJSON(ws.Frame{Type: "ack"})
			case "pull":
				_ = conn.WriteJSON(ws.Frame{Type: "documents", Documents: served})
			default:
				_ = conn.WriteJSON(ws.Frame{Type: "error", Error: "unknown frame type"})
			}
		}
	}
}

func (h *hubStub) receivedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.received)
}

func wsTestDoc(id, content string) *memory.Document {
	doc, err := memory.NewDocument(id, content, memory.TypeSemantic, "replica-1")
	Expect(err).NotTo(HaveOccurred())
	return doc
}

var _ = Describe("Gateway", func() {
	var (
		ctx     context.Context
		hub     *hubStub
		server  *httptest.Server
		gateway *ws.Gateway
	)

	BeforeEach(func() {
		ctx = context.Background()
		hub = &hubStub{}
		server = httptest.NewServer(hub.handler())

		var err error
		gateway, err = ws.NewGateway(&ws.Config{
			URL:        "ws" + strings.TrimPrefix(server.URL, "http"),
			InstanceID: "replica-1",
			Logger:     zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		gateway.Close()
		server.Close()
	})

	It("requires a URL", func() {
		_, err := ws.NewGateway(&ws.Config{Logger: zap.NewNop()})
		Expect(err).To(HaveOccurred())
	})

	Describe("Push", func() {
		It("delivers documents and reads the ack", func() {
			docs := []*memory.Document{
				wsTestDoc("mem-1", "one"),
				wsTestDoc("mem-2", "two"),
			}

			Expect(gateway.Push(ctx, docs)).To(Succeed())
			Expect(hub.receivedCount()).To(Equal(2))
		})

		It("is a no-op for an empty batch", func() {
			Expect(gateway.Push(ctx, nil)).To(Succeed())
			Expect(hub.receivedCount()).To(BeZero())
		})

		It("surfaces a gateway rejection as a TransportError", func() {
			hub.reject = true

			err := gateway.Push(ctx, []*memory.Document{wsTestDoc("mem-1", "one")})

			var terr sync.TransportError
			Expect(err).To(BeAssignableToTypeOf(terr))
		})
	})

	Describe("Pull", func() {
		It("returns the documents the hub serves", func() {
			hub.served = []*memory.Document{wsTestDoc("mem-9", "served")}

			docs, err := gateway.Pull(ctx, "anything", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].ID).To(Equal("mem-9"))
			Expect(docs[0].Content.Value).To(Equal("served"))
		})
	})

	Describe("reconnection", func() {
		It("re-dials after the hub drops the connection", func() {
			Expect(gateway.Push(ctx, []*memory.Document{wsTestDoc("mem-1", "one")})).To(Succeed())

			// Kill every open connection; the next call must re-dial.
			server.CloseClientConnections()

			Eventually(func() error {
				return gateway.Push(ctx, []*memory.Document{wsTestDoc("mem-2", "two")})
			}).Should(Succeed())
		})
	})
})
