package nips

import (
	"strings"
	"testing"

	nostr "github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = strings.Repeat("a", 64)
	bob   = strings.Repeat("b", 64)
)

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("30023:" + alice + ":my:post")
	require.NoError(t, err)
	assert.Equal(t, Address{Kind: 30023, PubKey: alice, D: "my:post"}, addr)
	assert.Equal(t, "30023:"+alice+":my:post", addr.String())

	addr, err = ParseAddress("10002:" + alice)
	require.NoError(t, err)
	assert.Empty(t, addr.D)

	for _, bad := range []string{"", "x:" + alice + ":d", "1:short:d", "-1:" + alice + ":"} {
		_, err := ParseAddress(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseDeletionRequest(t *testing.T) {
	target := strings.Repeat("1", 64)
	evt := &nostr.Event{
		Kind:      KindDeletion,
		PubKey:    alice,
		CreatedAt: 500,
		Tags: nostr.Tags{
			{"e", target},
			{"e", "not-an-id"},
			{"a", "30023:" + alice + ":post"},
			{"a", "garbage"},
			{"k", "1"},
			{"k", "x"},
			{"e"},
		},
	}
	assert.True(t, IsDeletionEvent(evt))

	req := ParseDeletionRequest(evt)
	assert.Equal(t, alice, req.PubKey)
	assert.Equal(t, nostr.Timestamp(500), req.CreatedAt)
	assert.Equal(t, []string{target}, req.EventIDs)
	assert.Equal(t, []Address{{Kind: 30023, PubKey: alice, D: "post"}}, req.Addresses)
	assert.Equal(t, []int{1}, req.Kinds)
}

func TestAuthorizeDeletion(t *testing.T) {
	req := DeletionRequest{PubKey: alice}
	hinted := DeletionRequest{PubKey: alice, Kinds: []int{1}}

	assert.True(t, AuthorizeDeletion(req, &nostr.Event{PubKey: alice, Kind: 7}))
	assert.False(t, AuthorizeDeletion(req, &nostr.Event{PubKey: bob, Kind: 1}))
	assert.False(t, AuthorizeDeletion(req, nil))
	assert.False(t, AuthorizeDeletion(req, &nostr.Event{PubKey: alice, Kind: KindDeletion}))

	assert.True(t, AuthorizeDeletion(hinted, &nostr.Event{PubKey: alice, Kind: 1}))
	assert.False(t, AuthorizeDeletion(hinted, &nostr.Event{PubKey: alice, Kind: 30023}))
}

func TestAuthorizeAddressDeletion(t *testing.T) {
	req := DeletionRequest{PubKey: alice}
	assert.True(t, AuthorizeAddressDeletion(req, Address{Kind: 30023, PubKey: alice}))
	assert.False(t, AuthorizeAddressDeletion(req, Address{Kind: 30023, PubKey: bob}))
}
