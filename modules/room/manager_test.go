package room

import (
	"testing"
	"time"

	"github.com/grafana/logrooms/pkg/entrystore"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() Config {
	return Config{RingCapacity: 100, StreamCapacity: 50, TraceTimeout: time.Minute, CompletedCap: 10}
}

func TestDefaultRoomExistsAtConstruction(t *testing.T) {
	m := NewManager(testConfig())
	r, ok := m.Get(DefaultRoomID)
	require.True(t, ok)
	require.Equal(t, DefaultRoomID, r.ID)
}

func TestGetOrCreateFiresCallbackExactlyOnce(t *testing.T) {
	m := NewManager(testConfig())
	var created []string
	m.OnRoomCreated(func(id string) { created = append(created, id) })

	r1 := m.GetOrCreate("alpha")
	r2 := m.GetOrCreate("alpha")
	require.Same(t, r1, r2)
	require.Equal(t, []string{"alpha"}, created)
}

func TestDeleteRefusesDefaultRoomButClearsIt(t *testing.T) {
	m := NewManager(testConfig())
	r, _ := m.Get(DefaultRoomID)
	r.Ring.Push(&entrystore.Entry{Timestamp: time.Now(), Level: entrystore.Message})

	err := m.Delete(DefaultRoomID)
	require.ErrorIs(t, err, ErrDefaultRoomUndeletable)

	r2, ok := m.Get(DefaultRoomID)
	require.True(t, ok, "default room must remain present")
	require.Equal(t, 0, r2.Ring.Size(), "delete degrades to clear for the default room")
}

func TestClearDefaultRoomKeepsIdentityResetsState(t *testing.T) {
	m := NewManager(testConfig())
	r, _ := m.Get(DefaultRoomID)
	r.Ring.Push(&entrystore.Entry{Timestamp: time.Now(), Level: entrystore.Message})
	require.Equal(t, 1, r.Ring.Size())

	require.NoError(t, m.Clear(DefaultRoomID))

	r2, ok := m.Get(DefaultRoomID)
	require.True(t, ok)
	require.Same(t, r, r2, "clear must not replace the room object")
	require.Equal(t, 0, r2.Ring.Size())
}

func TestDeleteNonDefaultRoomRemovesFromRegistry(t *testing.T) {
	m := NewManager(testConfig())
	m.GetOrCreate("temp")
	require.NoError(t, m.Delete("temp"))
	_, ok := m.Get("temp")
	require.False(t, ok)
}

func TestResizeRoomRejectsOutOfRange(t *testing.T) {
	m := NewManager(testConfig())
	require.ErrorIs(t, m.ResizeRoom(DefaultRoomID, 10), ErrCapacityInvalid)
	require.ErrorIs(t, m.ResizeRoom(DefaultRoomID, 2000000), ErrCapacityInvalid)
	require.ErrorIs(t, m.ResizeRoom("nope", 5000), ErrRoomNotFound)

	require.NoError(t, m.ResizeRoom(DefaultRoomID, 5000))
	r, _ := m.Get(DefaultRoomID)
	require.Equal(t, 5000, r.Ring.Capacity())
}

func TestDeleteUnknownRoomReportsNotFound(t *testing.T) {
	m := NewManager(testConfig())
	err := m.Delete("nope")
	require.ErrorIs(t, err, ErrRoomNotFound)
}

func TestStatsAggregatesAcrossRooms(t *testing.T) {
	m := NewManager(testConfig())
	def, _ := m.Get(DefaultRoomID)
	def.Ring.Push(&entrystore.Entry{Timestamp: time.Now(), Level: entrystore.Message})
	def.AddSubscriber("s1")

	other := m.GetOrCreate("other")
	other.Ring.Push(&entrystore.Entry{Timestamp: time.Now(), Level: entrystore.Message})
	other.Ring.Push(&entrystore.Entry{Timestamp: time.Now(), Level: entrystore.Message})
	other.AddProducer("p1")

	stats := m.Stats()
	require.Equal(t, 2, stats.RoomCount)
	require.Equal(t, 3, stats.TotalEntries)
	require.Equal(t, 1, stats.TotalSubscribers)
	require.Equal(t, 1, stats.TotalProducers)
}

func TestLastActivityMapReflectsTouch(t *testing.T) {
	m := NewManager(testConfig())
	r := m.GetOrCreate("active")
	now := time.Now().Add(time.Hour)
	r.Touch(now)

	activity := m.GetLastActivityMap()
	require.WithinDuration(t, now, activity["active"], 0)
}

func TestRoomMembershipAddRemove(t *testing.T) {
	r := newRoom("x", testConfig(), time.Now())
	r.AddSubscriber("sub1")
	r.AddProducer("prod1")
	require.Equal(t, 1, r.SubscriberCount())
	require.Equal(t, 1, r.ProducerCount())
	require.ElementsMatch(t, []string{"sub1"}, r.SubscriberIDs())

	r.RemoveSubscriber("sub1")
	r.RemoveProducer("prod1")
	require.Equal(t, 0, r.SubscriberCount())
	require.Equal(t, 0, r.ProducerCount())
}
