package capture

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utimer/protocol"
)

func writeTestSession(t *testing.T, hdr Header, records []Record) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "session.cbor")
	w, err := NewWriter(path, hdr)
	require.NoError(t, err)
	for _, rec := range records {
		require.NoError(t, w.Append(rec))
	}
	require.NoError(t, w.Close())
	return path
}

func TestSessionRoundTrip(t *testing.T) {
	boot := protocol.Boot{TickNum: 1000, TickDen: 1, PeriodTicks: 1 << 31}
	hdr := NewHeader("/dev/ttyACM0", ScheduleInterval, 20000, boot)
	assert.NotEmpty(t, hdr.SessionID)

	started := time.Date(2025, 11, 3, 9, 30, 0, 123456789, time.UTC)
	records := []Record{
		{Seq: 1, Micros: 1000, HostTime: started},
		{Seq: 2, Micros: 21000, HostTime: started.Add(20 * time.Millisecond)},
		{Seq: 3, Micros: 41002, HostTime: started.Add(40 * time.Millisecond)},
	}
	path := writeTestSession(t, hdr, records)

	r, err := OpenSession(path)
	require.NoError(t, err)
	defer r.Close()

	got := r.Header()
	assert.Equal(t, hdr.SessionID, got.SessionID)
	assert.Equal(t, hdr.Device, got.Device)
	assert.Equal(t, hdr.Schedule, got.Schedule)
	assert.Equal(t, hdr.NominalMicros, got.NominalMicros)
	assert.Equal(t, boot.TickNum, got.TickNum)
	assert.Equal(t, boot.TickDen, got.TickDen)
	assert.Equal(t, boot.PeriodTicks, got.PeriodTicks)

	for _, want := range records {
		rec, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, want.Seq, rec.Seq)
		assert.Equal(t, want.Micros, rec.Micros)
		assert.True(t, rec.HostTime.Equal(want.HostTime),
			"host time %v != %v", rec.HostTime, want.HostTime)
	}

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSummarizeSession(t *testing.T) {
	boot := protocol.Boot{TickNum: 1000, TickDen: 1, PeriodTicks: 1 << 31}
	hdr := NewHeader("test", ScheduleInterval, 20000, boot)

	now := time.Now()
	records := []Record{
		{Seq: 1, Micros: 0, HostTime: now},
		{Seq: 2, Micros: 20000, HostTime: now},
		{Seq: 3, Micros: 40004, HostTime: now},
		{Seq: 4, Micros: 60004, HostTime: now},
	}
	path := writeTestSession(t, hdr, records)

	r, err := OpenSession(path)
	require.NoError(t, err)
	defer r.Close()

	stats, err := SummarizeSession(r)
	require.NoError(t, err)

	assert.Equal(t, uint64(3), stats.Count())
	assert.Equal(t, uint64(20000), stats.Min())
	assert.Equal(t, uint64(20004), stats.Max())
	assert.InDelta(t, 20001.333333, stats.Mean(), 1e-5)
	assert.InDelta(t, 66.666666, stats.DriftPPM(20000), 1e-4)
}

func TestSummarizeTimeoutSession(t *testing.T) {
	boot := protocol.Boot{TickNum: 1000, TickDen: 1, PeriodTicks: 1 << 31}
	hdr := NewHeader("test", ScheduleTimeout, 2500000, boot)
	path := writeTestSession(t, hdr, []Record{
		{Seq: 1, Micros: 2500012, HostTime: time.Now()},
	})

	r, err := OpenSession(path)
	require.NoError(t, err)
	defer r.Close()

	// One report means no intervals to summarize
	stats, err := SummarizeSession(r)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stats.Count())
}

func TestOpenSessionEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.cbor")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	_, err := OpenSession(path)
	assert.Error(t, err)
}

func TestWriterAppendAfterClose(t *testing.T) {
	boot := protocol.Boot{TickNum: 1000, TickDen: 1, PeriodTicks: 1 << 31}
	path := filepath.Join(t.TempDir(), "session.cbor")

	w, err := NewWriter(path, NewHeader("test", ScheduleTimeout, 1000, boot))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "second close should be a no-op")

	assert.Error(t, w.Append(Record{Seq: 1}))
}
