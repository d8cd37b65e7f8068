package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/capnego/internal/domain"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func result(s domain.CapabilityStatus) domain.CapabilityResult {
	return domain.CapabilityResult{
		Status:   s,
		Metadata: domain.Metadata{Source: domain.SourceFresh, Timestamp: time.Unix(1700000000, 0)},
	}
}

func TestGet_MarksSourceCache(t *testing.T) {
	c := New(time.Minute, nil)
	c.Put(domain.CapabilityCamera, result(domain.StatusGranted), 0)

	got, ok := c.Get(domain.CapabilityCamera)
	require.True(t, ok)
	assert.Equal(t, domain.StatusGranted, got.Status)
	assert.Equal(t, domain.SourceCache, got.Metadata.Source)

	_, ok = c.Get(domain.CapabilityMicrophone)
	assert.False(t, ok)
}

func TestTTLExpiry(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	c := New(time.Minute, nil, WithClock(clk.now))

	c.Put(domain.CapabilityCamera, result(domain.StatusDenied), 0)
	c.Put(domain.CapabilityMicrophone, result(domain.StatusGranted), 10*time.Second)

	clk.advance(30 * time.Second)
	_, ok := c.Get(domain.CapabilityCamera)
	assert.True(t, ok)
	_, ok = c.Get(domain.CapabilityMicrophone)
	assert.False(t, ok)

	clk.advance(time.Minute)
	_, ok = c.Get(domain.CapabilityCamera)
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestBlockedNeverExpires(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	c := New(time.Minute, nil, WithClock(clk.now))

	c.Put(domain.CapabilityLocation, result(domain.StatusBlocked), time.Second)
	clk.advance(24 * time.Hour)

	got, ok := c.Get(domain.CapabilityLocation)
	require.True(t, ok)
	assert.Equal(t, domain.StatusBlocked, got.Status)

	c.Invalidate(domain.CapabilityLocation)
	_, ok = c.Get(domain.CapabilityLocation)
	assert.False(t, ok)
}

func TestInvalidateComposite(t *testing.T) {
	c := New(time.Minute, nil)
	c.Put(domain.CapabilityCameraMicrophone, result(domain.StatusLimited), 0)
	c.Put(domain.CapabilityCamera, result(domain.StatusGranted), 0)
	c.Put(domain.CapabilityMicrophone, result(domain.StatusDenied), 0)
	c.Put(domain.CapabilityLocation, result(domain.StatusGranted), 0)

	c.Invalidate(domain.CapabilityCameraMicrophone)

	for _, ct := range []domain.CapabilityType{domain.CapabilityCameraMicrophone, domain.CapabilityCamera, domain.CapabilityMicrophone} {
		_, ok := c.Get(ct)
		assert.False(t, ok, ct)
	}
	_, ok := c.Get(domain.CapabilityLocation)
	assert.True(t, ok)

	c.InvalidateAll()
	assert.Zero(t, c.Len())
}

func TestStoredResultIsIsolated(t *testing.T) {
	c := New(time.Minute, nil)
	r := result(domain.StatusLimited)
	r.BatchResults = map[domain.CapabilityType]domain.CapabilityStatus{domain.CapabilityCamera: domain.StatusGranted}
	c.Put(domain.CapabilityCameraMicrophone, r, 0)

	r.BatchResults[domain.CapabilityCamera] = domain.StatusDenied

	got, ok := c.Get(domain.CapabilityCameraMicrophone)
	require.True(t, ok)
	assert.Equal(t, domain.StatusGranted, got.BatchResults[domain.CapabilityCamera])
}

func TestPutIfNewer_KeepsFresherEntry(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	c := New(time.Minute, nil, WithClock(clk.now))
	began := clk.t

	// Запись, сделанная после начала более медленного обращения к ОС.
	fresh := result(domain.StatusDenied)
	fresh.Metadata.Timestamp = began.Add(time.Second)
	c.Put(domain.CapabilityCamera, fresh, 0)

	late := result(domain.StatusGranted)
	late.Metadata.Timestamp = began.Add(2 * time.Second)
	assert.False(t, c.PutIfNewer(domain.CapabilityCamera, late, began, 0))
	got, ok := c.Get(domain.CapabilityCamera)
	require.True(t, ok)
	assert.Equal(t, domain.StatusDenied, got.Status)

	assert.True(t, c.PutIfNewer(domain.CapabilityCamera, late, began.Add(time.Second), 0))
	got, _ = c.Get(domain.CapabilityCamera)
	assert.Equal(t, domain.StatusGranted, got.Status)

	assert.True(t, c.PutIfNewer(domain.CapabilityMicrophone, late, began, 0))

	// Истёкшая запись не мешает записи.
	clk.advance(2 * time.Minute)
	assert.True(t, c.PutIfNewer(domain.CapabilityCamera, fresh, began, 0))
	got, ok = c.Get(domain.CapabilityCamera)
	require.True(t, ok)
	assert.Equal(t, domain.StatusDenied, got.Status)
}
