package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFOOrder(t *testing.T) {
	q := New()
	var order []int
	var tickets []Ticket
	for i := 0; i < 5; i++ {
		tickets = append(tickets, q.Take())
	}

	done := make(chan struct{})
	for i, tk := range tickets {
		i, tk := i, tk
		go func() {
			<-tk.Wait
			order = append(order, i)
			tk.Release()
			if i == len(tickets)-1 {
				close(done)
			}
		}()
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tickets never drained")
	}
	require.Len(t, order, 5)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestQueueFreshReady(t *testing.T) {
	q := New()
	tk := q.Take()
	select {
	case <-tk.Wait:
	default:
		t.Fatal("first ticket should be immediately ready")
	}
	tk.Release()
}
