package generic

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolResetsOnPut(t *testing.T) {
	p := NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset)

	buf := p.Get()
	buf.WriteString("payload")
	p.Put(buf)
	assert.Zero(t, buf.Len())

	assert.Zero(t, p.Get().Len())
}

func TestPoolWith(t *testing.T) {
	p := NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset)
	boom := errors.New("boom")

	var seen *bytes.Buffer
	err := p.With(func(b *bytes.Buffer) error {
		seen = b
		b.WriteString("x")
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, seen.Len())
}
