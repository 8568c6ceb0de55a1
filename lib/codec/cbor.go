// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Forgeplan's standard CBOR encoding: Core
// Deterministic Encoding on the way out, lenient standard decoding on
// the way in. Run-store snapshots and archives use it so that equal
// state always serializes to identical bytes.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is configured with Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items.
var encMode cbor.EncMode

// decMode accepts standard CBOR and ignores unknown fields for
// forward compatibility.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Forgeplan never writes non-string map keys. When decoding
		// into an any-typed target the decoder must pick a concrete
		// map type; the CBOR default map[interface{}]interface{} is
		// useless to code expecting map[string]any, so pin that.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
