package service

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// grantRecord is the persisted form of an AccessGrant.  Times are kept as
// Unix nanoseconds so expiry comparisons survive the round trip exactly.
type grantRecord struct {
	Purpose     string `cbor:"1,keyasint"`
	GrantedAtNs int64  `cbor:"2,keyasint"`
	ExpiresAtNs int64  `cbor:"3,keyasint"`
}

var (
	grantEncMode cbor.EncMode
	grantDecMode cbor.DecMode
)

func init() {
	var err error
	grantEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("service: CBOR encoder initialization failed: " + err.Error())
	}
	grantDecMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("service: CBOR decoder initialization failed: " + err.Error())
	}
}

func encodeGrant(g AccessGrant) ([]byte, error) {
	return grantEncMode.Marshal(grantRecord{
		Purpose:     g.Purpose,
		GrantedAtNs: g.GrantedAt.UnixNano(),
		ExpiresAtNs: g.ExpiresAt.UnixNano(),
	})
}

func decodeGrant(b []byte) (AccessGrant, error) {
	var rec grantRecord
	if err := grantDecMode.Unmarshal(b, &rec); err != nil {
		return AccessGrant{}, fmt.Errorf("%w: %v", ErrMalformedGrant, err)
	}
	if rec.ExpiresAtNs < rec.GrantedAtNs {
		return AccessGrant{}, fmt.Errorf("%w: expiry before grant time", ErrMalformedGrant)
	}
	return AccessGrant{
		Purpose:   rec.Purpose,
		GrantedAt: time.Unix(0, rec.GrantedAtNs).UTC(),
		ExpiresAt: time.Unix(0, rec.ExpiresAtNs).UTC(),
	}, nil
}
