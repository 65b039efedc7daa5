package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pidgin/internal/provideradapter"
)

func TestProvider_EchoesLastMessage(t *testing.T) {
	p := NewProvider()
	resp, err := p.Chat(context.Background(), provideradapter.ChatRequest{
		Messages: []provideradapter.Message{{Role: "user", Content: "hello there"}},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "hello there")
}

func TestProvider_FixedResponsesThenEcho(t *testing.T) {
	p := NewProvider("scripted one", "scripted two")
	r1, _ := p.Chat(context.Background(), provideradapter.ChatRequest{})
	r2, _ := p.Chat(context.Background(), provideradapter.ChatRequest{})
	r3, _ := p.Chat(context.Background(), provideradapter.ChatRequest{
		Messages: []provideradapter.Message{{Content: "fallback"}},
	})
	assert.Equal(t, "scripted one", r1.Content)
	assert.Equal(t, "scripted two", r2.Content)
	assert.Contains(t, r3.Content, "fallback")
}

func TestProvider_ChatStream(t *testing.T) {
	p := NewProvider("streamed")
	deltas, errs := p.ChatStream(context.Background(), provideradapter.ChatRequest{})
	d := <-deltas
	assert.Equal(t, "streamed", d.Content)
	assert.True(t, d.Done)
	assert.NoError(t, <-errs)
}

func TestProvider_FailWithReturnsConfiguredError(t *testing.T) {
	want := assertTestErr("boom")
	p := NewFailingProvider(want)

	_, err := p.Chat(context.Background(), provideradapter.ChatRequest{})
	assert.Equal(t, want, err)

	deltas, errs := p.ChatStream(context.Background(), provideradapter.ChatRequest{})
	_, ok := <-deltas
	assert.False(t, ok, "deltas channel should close without sending on failure")
	assert.Equal(t, want, <-errs)
}

type assertTestErr string

func (e assertTestErr) Error() string { return string(e) }

func TestSilent_AlwaysEmpty(t *testing.T) {
	var s Silent
	resp, err := s.Chat(context.Background(), provideradapter.ChatRequest{
		Messages: []provideradapter.Message{{Content: "anything"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "", resp.Content)
	assert.Equal(t, 0, resp.OutputTokens)
}
