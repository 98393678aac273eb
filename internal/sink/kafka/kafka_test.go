package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhavKivar/piwebapi-etl/internal/model"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestWritePublishesKeyedMessages(t *testing.T) {
	fw := &fakeWriter{}
	s := NewWithWriter(fw, "TRINIDAD")

	err := s.Write(context.Background(), []model.FlatRecord{
		{ID: "f-1", Name: "EF-1", Attributes: map[string]any{"Excursion value": 12.5}},
		{ID: "f-2", Name: "EF-2"},
	})
	require.NoError(t, err)
	require.Len(t, fw.msgs, 2)

	assert.Equal(t, []byte("f-1"), fw.msgs[0].Key)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(fw.msgs[0].Value, &payload))
	assert.Equal(t, "EF-1", payload[model.FieldName])
	assert.Equal(t, 12.5, payload["Excursion value"])
	assert.Equal(t, "TRINIDAD", payload["site"])
}

func TestWriteEmptyBatchIsNoop(t *testing.T) {
	fw := &fakeWriter{err: errors.New("unreachable")}
	s := NewWithWriter(fw, "TRINIDAD")
	assert.NoError(t, s.Write(context.Background(), nil))
}

func TestWritePropagatesBrokerError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker down")}
	s := NewWithWriter(fw, "TRINIDAD")
	err := s.Write(context.Background(), []model.FlatRecord{{ID: "f-1"}})
	assert.ErrorContains(t, err, "broker down")
}

func TestClose(t *testing.T) {
	fw := &fakeWriter{}
	s := NewWithWriter(fw, "TRINIDAD")
	require.NoError(t, s.Close())
	assert.True(t, fw.closed)
}
