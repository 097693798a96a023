package history

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundsync-dev/fundsync/internal/model"
)

func str(s string) *string { return &s }

func event(ts int64) model.PaymentEvent {
	return model.PaymentEvent{
		Amount:    fmt.Sprintf("%d.00", ts),
		Sender:    fmt.Sprintf("Sender %d", ts),
		Timestamp: ts,
		Success:   true,
	}
}

func newStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	return Open(filepath.Join(t.TempDir(), "data", "notifications.json"), opts...)
}

func TestAppendLoadAll_RoundTrip(t *testing.T) {
	s := newStore(t)
	ok := model.PaymentEvent{Amount: "1250.50", Sender: "John Smith", Timestamp: 1, DonationID: str("d-1"), Success: true}
	failed := model.PaymentEvent{Amount: "10.00", Sender: "Asha", Timestamp: 2, ErrorMessage: str("Unknown error")}
	local := model.PaymentEvent{Amount: "5.00", Sender: model.UnknownSender, Timestamp: 3, Success: true}

	for _, ev := range []model.PaymentEvent{ok, failed, local} {
		require.NoError(t, s.Append(ev))
	}

	got := s.LoadAll()
	assert.Equal(t, []model.PaymentEvent{local, failed, ok}, got, "newest first")
	assert.Equal(t, got, s.Snapshot().Events)

	// A fresh store on the same file sees the same log.
	reopened := Open(s.Path())
	assert.Equal(t, got, reopened.Snapshot().Events)
}

func TestLoadAll_Missing(t *testing.T) {
	s := newStore(t)
	assert.Empty(t, s.LoadAll())
	assert.Equal(t, 0, s.Len())
}

func TestLoadAll_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	s := Open(path)
	assert.Empty(t, s.LoadAll())
	_, err := os.Stat(path)
	assert.NoError(t, err, "blank file is not corrupt")
}

func TestLoadAll_CorruptDeletesFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad json", `[{"amount": "1.00",`},
		{"object", `{"amount": "1.00"}`},
		{"null", `null`},
		{"missing fields", `[{"amount": "1.00"}]`},
		{"wrong types", `[{"amount": 1, "sender": "x", "timestamp": 1}]`},
		{"null element", `[null]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "notifications.json")
			s := Open(path)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			assert.Empty(t, s.LoadAll())
			_, err := os.Stat(path)
			assert.True(t, os.IsNotExist(err), "corrupt file should be removed")
		})
	}
}

func TestOpen_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	s := Open(path)
	assert.Equal(t, 0, s.Len())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAppend_EvictsOldest(t *testing.T) {
	s := newStore(t)
	for ts := int64(1); ts <= DefaultCapacity+1; ts++ {
		require.NoError(t, s.Append(event(ts)))
	}

	got := s.LoadAll()
	require.Len(t, got, DefaultCapacity)
	assert.Equal(t, int64(DefaultCapacity+1), got[0].Timestamp)
	assert.Equal(t, int64(2), got[len(got)-1].Timestamp, "earliest insert evicted")
	for _, ev := range got {
		assert.NotEqual(t, int64(1), ev.Timestamp)
	}
}

func TestAppend_CustomCapacity(t *testing.T) {
	s := newStore(t, WithCapacity(3))
	for ts := int64(1); ts <= 5; ts++ {
		require.NoError(t, s.Append(event(ts)))
		assert.LessOrEqual(t, s.Len(), 3)
	}
	got := s.LoadAll()
	require.Len(t, got, 3)
	assert.Equal(t, []int64{5, 4, 3}, []int64{got[0].Timestamp, got[1].Timestamp, got[2].Timestamp})
}

func TestOpen_TruncatesOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.json")
	big := Open(path)
	for ts := int64(1); ts <= 5; ts++ {
		require.NoError(t, big.Append(event(ts)))
	}

	small := Open(path, WithCapacity(2))
	assert.Equal(t, 2, small.Len())
	assert.Equal(t, int64(5), small.Snapshot().Events[0].Timestamp)
}

func TestClear(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Append(event(1)))
	before := s.Snapshot().Version

	require.NoError(t, s.Clear())
	assert.Empty(t, s.LoadAll())
	assert.Equal(t, 0, s.Len())
	assert.Greater(t, s.Snapshot().Version, before)
	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))

	// Clearing an absent log is fine.
	require.NoError(t, s.Clear())
}

func TestSnapshot_IsACopy(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Append(event(1)))

	snap := s.Snapshot()
	snap.Events[0].Sender = "mutated"
	assert.Equal(t, "Sender 1", s.Snapshot().Events[0].Sender)
}

func TestSnapshot_VersionAdvances(t *testing.T) {
	s := newStore(t)
	v0 := s.Snapshot().Version
	require.NoError(t, s.Append(event(1)))
	v1 := s.Snapshot().Version
	require.NoError(t, s.Append(event(2)))
	assert.Greater(t, v1, v0)
	assert.Greater(t, s.Snapshot().Version, v1)
}

func TestPersistedFormat(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Append(model.PaymentEvent{Amount: "1.00", Sender: "A", Timestamp: 7, Success: true}))
	require.NoError(t, s.Append(model.PaymentEvent{Amount: "2.00", Sender: "B", Timestamp: 8, ErrorMessage: str("")}))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"amount":"2.00","sender":"B","timestamp":8,"donationId":null,"isSuccess":false,"errorMessage":""},
		{"amount":"1.00","sender":"A","timestamp":7,"donationId":null,"isSuccess":true,"errorMessage":null}
	]`, string(data))

	got := s.LoadAll()
	require.Len(t, got, 2)
	require.NotNil(t, got[0].ErrorMessage, "empty string is not absent")
	assert.Equal(t, "", *got[0].ErrorMessage)
	assert.Nil(t, got[1].ErrorMessage)
}

func TestDecode_DefaultsSuccess(t *testing.T) {
	events, err := Decode([]byte(`[{"amount":"1.00","sender":"A","timestamp":1}]`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Success)
}

func TestDecode_Corrupt(t *testing.T) {
	_, err := Decode([]byte(`{`))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestEncode_Empty(t *testing.T) {
	data, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestConcurrentAppendAndRead(t *testing.T) {
	s := newStore(t, WithCapacity(50))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				assert.NoError(t, s.Append(event(int64(w*100+i))))
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				assert.LessOrEqual(t, len(s.Snapshot().Events), 50)
				assert.LessOrEqual(t, len(s.LoadAll()), 50)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
	assert.Len(t, s.LoadAll(), 50)
}
