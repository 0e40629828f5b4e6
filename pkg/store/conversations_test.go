package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagedesk/pkg/models"
)

func TestConversationIndexCountsReceivedPerSender(t *testing.T) {
	idx := NewConversationIndex()
	want := map[string]int{}
	for i := 0; i < 5; i++ {
		sender := fmt.Sprintf("u%d", i)
		for j := 0; j <= i; j++ {
			idx.Upsert(sender, rec(fmt.Sprintf("%s-%d", sender, j), sender, int64(i*10+j)), models.FallbackProfile(sender))
			want[sender]++
		}
	}

	require.Equal(t, 5, idx.Len())
	for sender, n := range want {
		conv, ok := idx.Get(sender)
		require.True(t, ok)
		assert.Equal(t, n, conv.UnreadCount, sender)
	}
}

func TestConversationIndexPostbackDoesNotCountUnread(t *testing.T) {
	idx := NewConversationIndex()
	pb := rec("p1", "u", 1)
	pb.Type = models.MessagePostback

	conv := idx.Upsert("u", pb, models.FallbackProfile("u"))
	assert.Equal(t, 0, conv.UnreadCount)

	conv = idx.Upsert("u", rec("m1", "u", 2), models.FallbackProfile("u"))
	assert.Equal(t, 1, conv.UnreadCount)

	pb.Timestamp = 3
	conv = idx.Upsert("u", pb, models.Profile{ID: "u", Name: "Ann Lee"})
	assert.Equal(t, 1, conv.UnreadCount)
	assert.Equal(t, int64(3), conv.LastActivity)
	assert.Equal(t, "Ann Lee", conv.SenderInfo.Name)
	assert.Equal(t, "p1", conv.LastMessage.ID)
}

func TestConversationIndexResetUnread(t *testing.T) {
	idx := NewConversationIndex()
	idx.Upsert("u", rec("m1", "u", 1), models.FallbackProfile("u"))
	idx.Upsert("u", rec("m2", "u", 2), models.FallbackProfile("u"))

	assert.True(t, idx.ResetUnread("u"))
	conv, _ := idx.Get("u")
	assert.Equal(t, 0, conv.UnreadCount)

	assert.False(t, idx.ResetUnread("nobody"))
	assert.Equal(t, 1, idx.Len())

	idx.Upsert("u", rec("m3", "u", 3), models.FallbackProfile("u"))
	conv, _ = idx.Get("u")
	assert.Equal(t, 1, conv.UnreadCount)
}

func TestConversationIndexListOrdering(t *testing.T) {
	idx := NewConversationIndex()
	idx.Upsert("b", rec("b1", "b", 100), models.FallbackProfile("b"))
	idx.Upsert("a", rec("a1", "a", 100), models.FallbackProfile("a"))
	idx.Upsert("c", rec("c1", "c", 300), models.FallbackProfile("c"))
	idx.Upsert("d", rec("d1", "d", 50), models.FallbackProfile("d"))

	order := func() []string {
		var out []string
		for _, c := range idx.List() {
			out = append(out, c.SenderID)
		}
		return out
	}

	assert.Equal(t, []string{"c", "a", "b", "d"}, order())
	for i := 0; i < 10; i++ {
		assert.Equal(t, []string{"c", "a", "b", "d"}, order())
	}

	// an older event for d moves its activity backwards but never ahead of newer ones
	idx.Upsert("d", rec("d0", "d", 10), models.FallbackProfile("d"))
	assert.Equal(t, []string{"c", "a", "b", "d"}, order())
}
