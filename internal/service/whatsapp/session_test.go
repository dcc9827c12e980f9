package whatsapp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mamadbah2/greenbook/internal/domain/models"
	"github.com/mamadbah2/greenbook/internal/service/commands"
)

var _ commands.DraftStore = (*SessionManager)(nil)

func TestSessionManager(t *testing.T) {
	now := time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC)
	sm := NewSessionManager(time.Hour)
	sm.now = func() time.Time { return now }

	_, ok := sm.Get("a")
	assert.False(t, ok)

	sm.Put("a", commands.Draft{Parsed: models.ParsedSale{Customer: "jake"}})
	sm.Put("b", commands.Draft{Parsed: models.ParsedSale{Customer: "mia"}})

	d, ok := sm.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "jake", d.Parsed.Customer)

	sm.Clear("a")
	_, ok = sm.Get("a")
	assert.False(t, ok)

	now = now.Add(61 * time.Minute)
	_, ok = sm.Get("b")
	assert.False(t, ok, "expired drafts are hidden")
	assert.Equal(t, 1, sm.Prune())
	assert.Equal(t, 0, sm.Prune())
}

func TestNewSessionManager_DefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultDraftTTL, NewSessionManager(0).ttl)
}
