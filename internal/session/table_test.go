package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableInsertLookupDeleteSizeInvariant(t *testing.T) {
	table := NewTable()
	assert.Equal(t, 0, table.Size())

	a := New("a", &fakePeer{})
	b := New("b", &fakePeer{})
	table.Insert(a)
	table.Insert(b)
	assert.Equal(t, 2, table.Size())
	assert.Same(t, a, table.Lookup("a"))

	table.Delete("a")
	assert.Equal(t, 1, table.Size())
	assert.Nil(t, table.Lookup("a"))
}

func TestTableBroadcastReachesEveryPeer(t *testing.T) {
	table := NewTable()
	peerA, peerB := &fakePeer{}, &fakePeer{}
	table.Insert(New("a", peerA))
	table.Insert(New("b", peerB))

	table.Broadcast(OutboundMessage{Type: OutCompilationStatus, Data: "ok"})

	assert.Len(t, peerA.snapshot(), 1)
	assert.Len(t, peerB.snapshot(), 1)
}
