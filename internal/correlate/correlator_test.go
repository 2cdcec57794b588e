package correlate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"emsp/internal/apperr"
	"emsp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedDelivery struct {
	commandId string
	outcome   string
}

type memJournal struct {
	mu      sync.Mutex
	entries []recordedDelivery
}

func (j *memJournal) Record(_ context.Context, commandId string, _ models.CommandType, outcome string, _ []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, recordedDelivery{commandId: commandId, outcome: outcome})
	return nil
}

type failingStore struct{}

func (failingStore) Lookup(context.Context, string) (*models.PendingCommand, error) {
	return nil, errors.New("connection reset")
}

func (failingStore) SetResult(context.Context, string, models.CommandResult) (models.CommandResult, bool, error) {
	return models.CommandResult{}, false, errors.New("connection reset")
}

func setup(t *testing.T) (*MemoryStore, *Correlator, *memJournal) {
	t.Helper()
	store := NewMemoryStore()
	require.NoError(t, store.Register(context.Background(), models.PendingCommand{
		CommandId:   "cmd-1",
		Type:        models.CommandStartSession,
		RemoteParty: "DE-ABC_CPO",
	}))
	journal := &memJournal{}
	return store, New(store, WithJournal(journal)), journal
}

func TestCorrelate_Accepted(t *testing.T) {
	store, c, journal := setup(t)

	outcome, err := c.Correlate(context.Background(), models.CommandStartSession, "cmd-1", []byte(`{"result": "ACCEPTED"}`))
	require.NoError(t, err)
	assert.Equal(t, Accepted, outcome)

	pending, err := store.Lookup(context.Background(), "cmd-1")
	require.NoError(t, err)
	require.NotNil(t, pending.Result)
	assert.Equal(t, models.ResultAccepted, pending.Result.Result)
	assert.Equal(t, `{"result":"ACCEPTED"}`, string(pending.Result.Raw))
	assert.False(t, pending.Result.ReceivedAt.IsZero())
	assert.Equal(t, []recordedDelivery{{commandId: "cmd-1", outcome: "accepted"}}, journal.entries)
}

func TestCorrelate_IdempotentRedelivery(t *testing.T) {
	store, c, _ := setup(t)
	body := []byte(`{"result":"REJECTED","message":[{"language":"en","text":"Connector occupied"}]}`)

	first, err := c.Correlate(context.Background(), models.CommandStartSession, "cmd-1", body)
	require.NoError(t, err)
	before, _ := store.Lookup(context.Background(), "cmd-1")

	// whitespace differences compact to the same payload
	second, err := c.Correlate(context.Background(), models.CommandStartSession, "cmd-1",
		[]byte(`{ "result":"REJECTED", "message":[ {"language":"en", "text":"Connector occupied"} ] }`))
	require.NoError(t, err)
	after, _ := store.Lookup(context.Background(), "cmd-1")

	assert.Equal(t, Accepted, first)
	assert.Equal(t, Accepted, second)
	assert.Equal(t, before.Result, after.Result)
}

func TestCorrelate_KeyOrderIsADifferentPayload(t *testing.T) {
	_, c, _ := setup(t)

	_, err := c.Correlate(context.Background(), models.CommandStartSession, "cmd-1",
		[]byte(`{"result":"REJECTED","message":[{"language":"en","text":"Busy"}]}`))
	require.NoError(t, err)

	outcome, err := c.Correlate(context.Background(), models.CommandStartSession, "cmd-1",
		[]byte(`{"message":[{"language":"en","text":"Busy"}],"result":"REJECTED"}`))
	assert.Equal(t, Conflict, outcome)
	assert.Equal(t, apperr.CodeResultConflict, apperr.TextCode(err))
}

func TestCorrelate_ConflictKeepsFirstResult(t *testing.T) {
	store, c, journal := setup(t)

	_, err := c.Correlate(context.Background(), models.CommandStartSession, "cmd-1", []byte(`{"result":"ACCEPTED"}`))
	require.NoError(t, err)

	outcome, err := c.Correlate(context.Background(), models.CommandStartSession, "cmd-1", []byte(`{"result":"FAILED"}`))
	assert.Equal(t, Conflict, outcome)
	assert.Equal(t, apperr.CodeResultConflict, apperr.TextCode(err))

	pending, _ := store.Lookup(context.Background(), "cmd-1")
	assert.Equal(t, models.ResultAccepted, pending.Result.Result)
	assert.Len(t, journal.entries, 2)
	assert.Equal(t, "conflict", journal.entries[1].outcome)
}

func TestCorrelate_UnknownCommandId(t *testing.T) {
	store, c, _ := setup(t)

	outcome, err := c.Correlate(context.Background(), models.CommandStopSession, "cmd-404", []byte(`{"result":"ACCEPTED"}`))
	require.NoError(t, err)
	assert.Equal(t, UnknownCommandId, outcome)

	pending, err := store.Lookup(context.Background(), "cmd-404")
	require.NoError(t, err)
	assert.Nil(t, pending)
	assert.Equal(t, 1, store.Len())
}

func TestCorrelate_TypeMismatchIsUnknown(t *testing.T) {
	store, c, _ := setup(t)

	outcome, err := c.Correlate(context.Background(), models.CommandUnlockConnector, "cmd-1", []byte(`{"result":"ACCEPTED"}`))
	require.NoError(t, err)
	assert.Equal(t, UnknownCommandId, outcome)

	pending, _ := store.Lookup(context.Background(), "cmd-1")
	assert.Nil(t, pending.Result)
}

func TestCorrelate_Malformed(t *testing.T) {
	_, c, _ := setup(t)

	cases := map[string][]byte{
		"not json":       []byte(`{"result":`),
		"missing result": []byte(`{"message":[]}`),
		"bad enum":       []byte(`{"result":"MAYBE"}`),
		"bad message":    []byte(`{"result":"FAILED","message":[{"language":"","text":"x"}]}`),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			outcome, err := c.Correlate(context.Background(), models.CommandStartSession, "cmd-1", body)
			assert.Equal(t, MalformedResult, outcome)
			assert.Equal(t, apperr.CodeMalformedResult, apperr.TextCode(err))
		})
	}

	outcome, err := c.Correlate(context.Background(), models.CommandStartSession, " ", []byte(`{"result":"ACCEPTED"}`))
	assert.Equal(t, MalformedResult, outcome)
	assert.Error(t, err)
}

func TestCorrelate_MalformedIsReportedBeforeLookup(t *testing.T) {
	c := New(failingStore{})
	outcome, err := c.Correlate(context.Background(), models.CommandReserveNow, "cmd-1", []byte(`nope`))
	assert.Equal(t, MalformedResult, outcome)
	assert.Equal(t, apperr.CodeMalformedResult, apperr.TextCode(err))
}

func TestCorrelate_StoreFailure(t *testing.T) {
	c := New(failingStore{})
	_, err := c.Correlate(context.Background(), models.CommandReserveNow, "cmd-1", []byte(`{"result":"ACCEPTED"}`))
	assert.Equal(t, apperr.CodeInternal, apperr.TextCode(err))
}

func TestCorrelate_AllCommandTypesShareTheAlgorithm(t *testing.T) {
	store := NewMemoryStore()
	c := New(store)
	for i, ct := range models.CommandTypes {
		id := fmt.Sprintf("cmd-%d", i)
		require.NoError(t, store.Register(context.Background(), models.PendingCommand{CommandId: id, Type: ct}))

		outcome, err := c.Correlate(context.Background(), ct, id, []byte(`{"result":"ACCEPTED"}`))
		require.NoError(t, err)
		assert.Equal(t, Accepted, outcome, ct)
	}
}

func TestCorrelate_ConcurrentDistinctDeliveries(t *testing.T) {
	store, c, _ := setup(t)
	results := []models.CommandResultType{
		models.ResultAccepted, models.ResultFailed, models.ResultRejected, models.ResultTimeout,
		models.ResultNotSupported, models.ResultEvseOccupied, models.ResultEvseInoperative,
	}

	var wg sync.WaitGroup
	outcomes := make(chan Outcome, len(results)*4)
	for i := 0; i < 4; i++ {
		for _, r := range results {
			wg.Add(1)
			go func(r models.CommandResultType) {
				defer wg.Done()
				o, _ := c.Correlate(context.Background(), models.CommandStartSession, "cmd-1",
					[]byte(fmt.Sprintf(`{"result":%q}`, r)))
				outcomes <- o
			}(r)
		}
	}
	wg.Wait()
	close(outcomes)

	counts := map[Outcome]int{}
	for o := range outcomes {
		counts[o]++
	}
	pending, _ := store.Lookup(context.Background(), "cmd-1")
	require.NotNil(t, pending.Result)

	// the winning payload was delivered 4 times, every other delivery conflicts
	assert.Equal(t, 4, counts[Accepted])
	assert.Equal(t, len(results)*4-4, counts[Conflict])
}

func TestCorrelate_UsesClock(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Register(context.Background(), models.PendingCommand{CommandId: "c", Type: models.CommandStopSession}))
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	_, err := New(store, WithClock(func() time.Time { return at })).
		Correlate(context.Background(), models.CommandStopSession, "c", []byte(`{"result":"ACCEPTED"}`))
	require.NoError(t, err)

	pending, _ := store.Lookup(context.Background(), "c")
	assert.Equal(t, at, pending.Result.ReceivedAt)
}
