package platform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintStableAcrossRefetches(t *testing.T) {
	base := &PlatformContent{
		ContentID: "event-123",
		Title:     "Release notes",
		Body:      "Shipped v2",
		Metadata:  map[string]interface{}{"likes": 10},
	}
	refetched := &PlatformContent{
		ContentID: "event-123",
		Title:     "Release notes",
		Body:      "Shipped v2",
		Metadata:  map[string]interface{}{"likes": 250}, // engagement drifted
	}

	assert.Equal(t, Fingerprint("plat-1", base), Fingerprint("plat-1", refetched))
}

func TestFingerprintNormalizesWhitespace(t *testing.T) {
	a := &PlatformContent{ContentID: "1", Title: "hello  world", Body: " body\ttext "}
	b := &PlatformContent{ContentID: "1", Title: "hello world", Body: "body text"}

	assert.Equal(t, Fingerprint("p", a), Fingerprint("p", b))
}

func TestFingerprintDistinguishesPlatformAndContent(t *testing.T) {
	c := &PlatformContent{ContentID: "1", Title: "t", Body: "b"}

	assert.NotEqual(t, Fingerprint("plat-a", c), Fingerprint("plat-b", c))

	other := &PlatformContent{ContentID: "2", Title: "t", Body: "b"}
	assert.NotEqual(t, Fingerprint("plat-a", c), Fingerprint("plat-a", other))
}

func TestInTimeRange(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	inside := start.Add(12 * time.Hour)

	assert.True(t, InTimeRange(&inside, &start, &end))

	// nil publish time always passes
	assert.True(t, InTimeRange(nil, &start, &end))

	// window is (start, end]: start itself is excluded, end is included
	assert.False(t, InTimeRange(&start, &start, &end))
	assert.True(t, InTimeRange(&end, &start, &end))

	after := end.Add(time.Second)
	assert.False(t, InTimeRange(&after, &start, &end))

	// open bounds
	assert.True(t, InTimeRange(&after, &start, nil))
	before := start.Add(-time.Hour)
	assert.True(t, InTimeRange(&before, nil, &end))
}
