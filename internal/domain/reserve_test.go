package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucket_Expect(t *testing.T) {
	assert.NoError(t, NewBucket(AssetBase, d("1")).Expect(AssetBase))
	assert.ErrorIs(t, NewBucket(AssetYield, d("1")).Expect(AssetBase), ErrWrongAsset)
	assert.ErrorIs(t, NewBucket(AssetBase, d("0")).Expect(AssetBase), ErrInvalidAmount)
	assert.ErrorIs(t, NewBucket(AssetBase, d("-3")).Expect(AssetBase), ErrInvalidAmount)
}

func TestReserve_PutTake(t *testing.T) {
	r := NewReserve(AssetBase, d("100"), "")

	require.NoError(t, r.Put(NewBucket(AssetBase, d("50"))))
	b, err := r.Take(d("120"))
	require.NoError(t, err)

	assert.Equal(t, AssetBase, b.Asset)
	assert.True(t, d("120").Equal(b.Amount))
	assert.True(t, d("30").Equal(r.Amount()))
}

func TestReserve_TakeMoreThanHeld(t *testing.T) {
	r := NewReserve(AssetBase, d("10"), "")
	_, err := r.Take(d("10.01"))
	assert.ErrorIs(t, err, ErrInsufficientReserve)
	assert.True(t, d("10").Equal(r.Amount()))
}

func TestReserve_PutWrongAsset(t *testing.T) {
	r := NewReserve(AssetBase, d("10"), "")
	assert.ErrorIs(t, r.Put(NewBucket(AssetYield, d("1"))), ErrWrongAsset)
}

func TestReserve_MintBurnUnderGrant(t *testing.T) {
	auth := NewAuthority("auth")
	r := NewReserve(AssetYield, d("1000"), auth.ID())

	err := auth.Authorize(func(g Grant) error {
		if err := r.Mint(g, d("21")); err != nil {
			return err
		}
		return r.Burn(g, d("15"))
	})
	require.NoError(t, err)
	assert.True(t, d("1006").Equal(r.Amount()))
}

func TestReserve_MintWithExpiredGrant(t *testing.T) {
	auth := NewAuthority("auth")
	r := NewReserve(AssetYield, d("1000"), auth.ID())

	var leaked Grant
	require.NoError(t, auth.Authorize(func(g Grant) error {
		leaked = g
		return nil
	}))

	assert.False(t, leaked.Live())
	assert.ErrorIs(t, r.Mint(leaked, d("1")), ErrUnauthorized)
	assert.ErrorIs(t, r.Burn(leaked, d("1")), ErrUnauthorized)
	assert.ErrorIs(t, r.Mint(Grant{}, d("1")), ErrUnauthorized)
	assert.True(t, d("1000").Equal(r.Amount()))
}

func TestReserve_MintWithForeignAuthority(t *testing.T) {
	r := NewReserve(AssetYield, d("1000"), "auth")
	other := NewAuthority("other")

	err := other.Authorize(func(g Grant) error {
		return r.Mint(g, d("1"))
	})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestReserve_BaseIsNotMintable(t *testing.T) {
	auth := NewAuthority("auth")
	r := NewReserve(AssetBase, d("1000"), "")

	err := auth.Authorize(func(g Grant) error {
		return r.Mint(g, d("1"))
	})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestReserve_BurnMoreThanHeld(t *testing.T) {
	auth := NewAuthority("auth")
	r := NewReserve(AssetYield, d("5"), auth.ID())

	err := auth.Authorize(func(g Grant) error {
		return r.Burn(g, d("6"))
	})
	assert.ErrorIs(t, err, ErrInsufficientReserve)
}
