////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package client

// params.go defines the tunable parameters of a Client.

import (
	"encoding/json"

	"gitlab.com/parley/client/blob"
)

// Params holds the settings of a Client.
type Params struct {
	// SearchLimit is the largest number of usernames a search returns.
	SearchLimit int

	// HistoryPageSize is the number of past messages a new subscription
	// delivers.
	HistoryPageSize int

	// Media controls image preparation before upload.
	Media blob.MediaParams

	// NotificationRate limits push notifications per second. Zero or less
	// disables the limit.
	NotificationRate int
}

// GetDefaultParams returns the default Params.
func GetDefaultParams() Params {
	return Params{
		SearchLimit:     20,
		HistoryPageSize: 25,
		Media: blob.MediaParams{
			MaxDimension: 1024,
			JPEGQuality:  80,
		},
		NotificationRate: 10,
	}
}

// ParseParameters returns the default Params, or overrides them with the
// given JSON, if set.
func ParseParameters(paramsJSON string) (Params, error) {
	p := GetDefaultParams()
	if len(paramsJSON) > 0 {
		err := json.Unmarshal([]byte(paramsJSON), &p)
		if err != nil {
			return Params{}, err
		}
	}
	return p, nil
}
