// Package curve wraps the secp256k1 scalar and point operations the
// Kangaroo solver needs: parsing, serialisation, point addition, and
// scalar multiplication by the generator. It is a thin adapter over
// github.com/decred/dcrd/dcrec/secp256k1/v4 — the solver never touches
// that package directly.
package curve

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// GroupOrder is the order n of the secp256k1 group.
var GroupOrder, _ = new(big.Int).SetString(
	"FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141", 16)

// ErrInvalidPoint is returned when a point fails to parse.
var ErrInvalidPoint = errors.New("curve: invalid point encoding")

// Point is a secp256k1 group element.
type Point struct {
	j secp256k1.JacobianPoint
}

// Generator returns the standard secp256k1 base point G.
func Generator() Point {
	return ScalarBaseMult(big.NewInt(1))
}

// ParsePoint parses a 33-byte compressed or 65-byte uncompressed encoding.
func ParsePoint(b []byte) (Point, error) {
	pub, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return Point{}, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}
	var p Point
	pub.AsJacobian(&p.j)
	return p, nil
}

// Compressed returns the 33-byte compressed encoding 0x02/0x03 || X.
func (p Point) Compressed() [33]byte {
	p.j.ToAffine()
	pub := secp256k1.NewPublicKey(&p.j.X, &p.j.Y)
	var out [33]byte
	copy(out[:], pub.SerializeCompressed())
	return out
}

// Uncompressed returns the 65-byte encoding 0x04 || X || Y.
func (p Point) Uncompressed() [65]byte {
	p.j.ToAffine()
	pub := secp256k1.NewPublicKey(&p.j.X, &p.j.Y)
	var out [65]byte
	copy(out[:], pub.SerializeUncompressed())
	return out
}

// XY returns the raw 32-byte big-endian X and Y affine coordinates, the
// layout the accelerator's flat point arrays use (§6.2: "uncompressed
// affine, 64 bytes").
func (p Point) XY() (x, y [32]byte) {
	p.j.ToAffine()
	xb := p.j.X.Bytes()
	yb := p.j.Y.Bytes()
	return *xb, *yb
}

// PointFromXY reconstructs a Point from raw 32-byte affine coordinates.
func PointFromXY(x, y [32]byte) (Point, error) {
	buf := make([]byte, 65)
	buf[0] = 0x04
	copy(buf[1:33], x[:])
	copy(buf[33:], y[:])
	return ParsePoint(buf)
}

// Equal compares two points by their compressed encoding.
func Equal(a, b Point) bool {
	return a.Compressed() == b.Compressed()
}

// Add returns p + q.
func Add(p, q Point) Point {
	var sum secp256k1.JacobianPoint
	secp256k1.AddNonConst(&p.j, &q.j, &sum)
	return Point{j: sum}
}

// ScalarBaseMult returns k·G, reducing k modulo the group order first.
func ScalarBaseMult(k *big.Int) Point {
	s := ScalarToModN(k)
	var result secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(s, &result)
	return Point{j: result}
}

// AddScalarBaseMult returns p + k·G, used to seed wild walkers at T + o·G.
func AddScalarBaseMult(p Point, k *big.Int) Point {
	return Add(p, ScalarBaseMult(k))
}

// ScalarToModN reduces a big.Int into a secp256k1.ModNScalar.
func ScalarToModN(k *big.Int) *secp256k1.ModNScalar {
	var s secp256k1.ModNScalar
	reduced := new(big.Int).Mod(k, GroupOrder)
	b := ScalarToBytes(reduced)
	s.SetBytes(&b)
	return &s
}

// ScalarToBytes serialises a scalar in [0, n) as 32 bytes big-endian,
// zero-padded. Callers must reduce mod n first if the value may exceed it.
func ScalarToBytes(k *big.Int) [32]byte {
	var out [32]byte
	b := k.Bytes()
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(out[32-len(b):], b)
	return out
}

// BytesToScalar is the inverse of ScalarToBytes.
func BytesToScalar(b [32]byte) *big.Int {
	return new(big.Int).SetBytes(b[:])
}
