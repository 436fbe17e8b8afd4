package model

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"fungible":     KindFungible,
		"erc20":        KindFungible,
		"non_fungible": KindNonFungible,
		"nft":          KindNonFungible,
		"native":       KindNative,
		"eth":          KindNative,
	}
	for in, want := range cases {
		got, ok := ParseKind(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseKind("erc1155")
	assert.False(t, ok)
}

func TestKindTextRoundTrip(t *testing.T) {
	for _, k := range []Kind{KindFungible, KindNonFungible, KindNative} {
		b, err := k.MarshalText()
		require.NoError(t, err)
		var got Kind
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, k, got)
	}
	var k Kind
	assert.Error(t, k.UnmarshalText([]byte("bogus")))
}

func TestTokenOrMarker(t *testing.T) {
	tok, err := ParseAddress("0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	assert.Equal(t, tok, BatchRequest{Kind: KindFungible, Token: tok}.TokenOrMarker())
	assert.Equal(t, NativeMarker, BatchRequest{Kind: KindNative, Token: tok}.TokenOrMarker())
}

func TestAmountAtNilIsZero(t *testing.T) {
	r := BatchRequest{AmountsOrIDs: []*uint256.Int{nil, uint256.NewInt(5)}}
	assert.True(t, r.AmountAt(0).IsZero())
	assert.Equal(t, uint64(5), r.AmountAt(1).Uint64())
	assert.True(t, r.AmountAt(7).IsZero())
	assert.True(t, r.Attached().IsZero())
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("1000")
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), v.Uint64())

	v, err = ParseAmount("0x10")
	require.NoError(t, err)
	assert.Equal(t, uint64(16), v.Uint64())

	v, err = ParseAmount("")
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	_, err = ParseAmount("-1")
	assert.Error(t, err)
	_, err = ParseAmount("abc")
	assert.Error(t, err)
	// 2^256 does not fit.
	_, err = ParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639936")
	assert.Error(t, err)

	assert.Equal(t, "1000", FormatAmount(uint256.NewInt(1000)))
	assert.Equal(t, "0", FormatAmount(nil))
}

func TestParseAddress(t *testing.T) {
	_, err := ParseAddress("not-an-address")
	assert.Error(t, err)
	a, err := ParseAddress("0x000000000000000000000000000000000000bEEF")
	require.NoError(t, err)
	assert.Equal(t, NativeMarker, a)
}

func TestBatchDocumentRequest(t *testing.T) {
	doc := BatchDocument{
		Caller:       "0x00000000000000000000000000000000000000ca",
		Kind:         "erc20",
		Token:        "0x0000000000000000000000000000000000000070",
		Recipients:   []string{"0x00000000000000000000000000000000000000a1", "0x00000000000000000000000000000000000000b2"},
		Amounts:      []string{"10", "0x14"},
		RevertOnFail: true,
		Value:        "3",
	}
	caller, req, err := doc.Request()
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if caller != common.HexToAddress("0xca") || req.Kind != KindFungible || !req.RevertOnFail {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.AmountAt(1).Uint64() != 20 || req.Attached().Uint64() != 3 {
		t.Fatalf("amounts not parsed: %v %v", req.AmountAt(1), req.Attached())
	}
}

func TestBatchDocumentRequestErrors(t *testing.T) {
	base := BatchDocument{Caller: "0x00000000000000000000000000000000000000ca", Kind: "native"}
	cases := map[string]func(*BatchDocument){
		"caller":    func(d *BatchDocument) { d.Caller = "nope" },
		"recipient": func(d *BatchDocument) { d.Recipients = []string{"0x12"} },
		"amount":    func(d *BatchDocument) { d.Amounts = []string{"-1"} },
		"value":     func(d *BatchDocument) { d.Value = "x" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := base
			mutate(&d)
			if _, _, err := d.Request(); !errors.Is(err, ErrMalformedBatch) {
				t.Fatalf("expected ErrMalformedBatch, got %v", err)
			}
		})
	}
}

func TestBatchDocumentUnknownKindPassesThrough(t *testing.T) {
	_, req, err := BatchDocument{Caller: "0x00000000000000000000000000000000000000ca", Kind: "erc1155"}.Request()
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.Kind.Valid() {
		t.Fatalf("expected invalid kind, got %v", req.Kind)
	}
}
