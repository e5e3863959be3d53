package segment

import (
	"fmt"
	"sync/atomic"
)

// Generator hands out question IDs scoped to a session.
type Generator struct {
	counter uint64
}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Next(sessionId string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-q-%d", sessionId, n)
}
