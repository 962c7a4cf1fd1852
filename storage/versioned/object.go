////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package versioned

import (
	"encoding/json"
	"time"

	jww "github.com/spf13/jwalterweatherman"
)

// Object is the envelope every value is wrapped in before it reaches the
// backing ekv.KeyValue.
type Object struct {
	// Version of the layout of Data
	Version uint64

	// Time the object was written
	Timestamp time.Time

	// Serialized payload
	Data []byte
}

// Marshal serializes the Object into JSON. It satisfies ekv.Marshaler.
func (o *Object) Marshal() []byte {
	data, err := json.Marshal(o)
	if err != nil {
		jww.FATAL.Panicf("Failed to marshal versioned object: %+v", err)
	}
	return data
}

// Unmarshal deserializes JSON into the Object. It satisfies ekv.Unmarshaler.
func (o *Object) Unmarshal(data []byte) error {
	return json.Unmarshal(data, o)
}
