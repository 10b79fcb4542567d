package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/store/memory"
)

type fakeExporter struct {
	exports [][]core.Expense
	err     error
}

func (f *fakeExporter) Export(_ context.Context, list []core.Expense) error {
	if f.err != nil {
		return f.err
	}
	f.exports = append(f.exports, list)
	return nil
}

func newMirror(t *testing.T, clock *time.Time) (*Mirror, *fakeExporter) {
	t.Helper()
	gw := memory.New([]string{"Food"})
	_, err := gw.CreateExpense(context.Background(), core.Draft{
		Description: "Bread", Amount: core.Money{Cents: 250}, Date: core.NewDate(2024, 3, 1),
	})
	require.NoError(t, err)

	exp := &fakeExporter{}
	m := NewMirror(gw, exp, nil)
	m.now = func() time.Time { return *clock }
	return m, exp
}

func TestMirrorHandleEventExportsFullList(t *testing.T) {
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m, exp := newMirror(t, &clock)

	ev := &amqp.ExpenseEvent{Type: amqp.EventExpenseCreated, ID: 1, Timestamp: clock.Add(-time.Second)}
	require.NoError(t, m.HandleEvent(context.Background(), ev))

	require.Len(t, exp.exports, 1)
	require.Len(t, exp.exports[0], 1)
	assert.Equal(t, "Bread", exp.exports[0][0].Description)
	assert.Equal(t, clock, m.LastSync())
}

func TestMirrorSkipsStaleEvents(t *testing.T) {
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m, exp := newMirror(t, &clock)
	require.NoError(t, m.Sync(context.Background()))

	stale := &amqp.ExpenseEvent{Type: amqp.EventExpenseUpdated, ID: 1, Timestamp: clock.Add(-time.Minute)}
	require.NoError(t, m.HandleEvent(context.Background(), stale))
	assert.Len(t, exp.exports, 1)

	fresh := &amqp.ExpenseEvent{Type: amqp.EventExpenseDeleted, ID: 1, Timestamp: clock.Add(time.Minute)}
	clock = clock.Add(2 * time.Minute)
	require.NoError(t, m.HandleEvent(context.Background(), fresh))
	assert.Len(t, exp.exports, 2)
}

func TestMirrorExportFailureIsReturned(t *testing.T) {
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m, exp := newMirror(t, &clock)
	exp.err = errors.New("quota exceeded")

	err := m.HandleEvent(context.Background(), amqp.NewExpenseEvent(amqp.EventExpenseCreated, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, exp.err)
	assert.True(t, m.LastSync().IsZero())
}
