package domain

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type PayloadSuite struct {
	suite.Suite
}

func TestPayloadSuite(t *testing.T) {
	suite.Run(t, new(PayloadSuite))
}

func (s *PayloadSuite) TestEqual() {
	s.Run("key order never matters", func() {
		a, err := DecodePayload([]byte(`{"id":1,"name":"Arcadia","tags":["jam","encore"]}`))
		s.Require().NoError(err)
		b, err := DecodePayload([]byte(`{"tags":["jam","encore"],"name":"Arcadia","id":1}`))
		s.Require().NoError(err)
		s.True(a.Equal(b))
	})

	s.Run("array order matters", func() {
		a, err := DecodePayload([]byte(`{"tags":["a","b"]}`))
		s.Require().NoError(err)
		b, err := DecodePayload([]byte(`{"tags":["b","a"]}`))
		s.Require().NoError(err)
		s.False(a.Equal(b))
	})

	s.Run("nested objects compare structurally", func() {
		a, err := DecodePayload([]byte(`{"venue":{"id":1,"name":"Red Rocks"}}`))
		s.Require().NoError(err)
		b, err := DecodePayload([]byte(`{"venue":{"name":"Red Rocks","id":1}}`))
		s.Require().NoError(err)
		s.True(a.Equal(b))
	})

	s.Run("value change detected", func() {
		a := Payload{"id": float64(1), "name": "Arcadia"}
		b := Payload{"id": float64(1), "name": "Arcadia (Reprise)"}
		s.False(a.Equal(b))
	})
}

func (s *PayloadSuite) TestClone() {
	original := Payload{"id": float64(1), "venue": map[string]any{"name": "Red Rocks"}}
	clone := original.Clone()

	clone["venue"].(map[string]any)["name"] = "mutated"
	s.Equal("Red Rocks", original["venue"].(map[string]any)["name"], "clone is deep")

	s.Run("nil clones to nil", func() {
		var p Payload
		s.Nil(p.Clone())
	})
}

func (s *PayloadSuite) TestDecodePayload() {
	_, err := DecodePayload([]byte(`not json`))
	s.Error(err)
}
