package publisher

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/kafka"
)

type fakeProducer struct {
	batches [][]kafka.Event
	err     error
}

func (f *fakeProducer) PublishBatch(_ context.Context, events []kafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, append([]kafka.Event(nil), events...))
	return nil
}

const rows = `tt0000001|short|Carmencita|Carmencita|0|1894|-|1|Documentary,Short
tt0000002|short|Le clown et ses chiens|Le clown et ses chiens|0|1892|-|5|Animation,Short

not a row
tt0000003|movie|Pauvre Pierrot|Pauvre Pierrot|0|1892|-|4|Animation,Comedy,Romance
`

func TestPublishRows(t *testing.T) {
	prod := &fakeProducer{}
	p := New(prod, 2)

	res, err := p.PublishRows(context.Background(), 5, strings.NewReader(rows))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Published)
	assert.Equal(t, 1, res.Skipped)
	assert.Contains(t, res.RowErrors.Error(), "row 3")

	require.Len(t, prod.batches, 2)
	assert.Len(t, prod.batches[0], 2)
	last := prod.batches[1][0]
	assert.Equal(t, "5", last.Key)
	ev := last.Value.(ingestion.RowEvent)
	assert.Equal(t, uint64(5), ev.DocID)
	assert.Equal(t, 4, ev.Row)
	assert.True(t, strings.HasPrefix(ev.Line, "tt0000003|"))
}

func TestPublishRowsProducerFailure(t *testing.T) {
	boom := errors.New("broker unreachable")
	res, err := New(&fakeProducer{err: boom}, 0).PublishRows(context.Background(), 1, strings.NewReader(rows))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, res.Published)
}

func TestPublishRowsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(&fakeProducer{}, 10).PublishRows(ctx, 1, strings.NewReader(rows))
	assert.ErrorIs(t, err, context.Canceled)
}
