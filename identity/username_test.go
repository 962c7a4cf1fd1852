////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package identity

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestValidateUsername(t *testing.T) {
	valid := []string{"amy", "bob_99", "zoë", strings.Repeat("x", 32)}
	for _, u := range valid {
		if err := ValidateUsername(u); err != nil {
			t.Errorf("Valid username %q rejected: %+v", u, err)
		}
	}

	invalid := []string{
		"", "ab", strings.Repeat("x", 33), "a b c", "Amy", "amy.b",
		"amy/b", "a#b", "smile😀",
	}
	for _, u := range invalid {
		err := ValidateUsername(u)
		if !errors.Is(err, ErrInvalidUsername) {
			t.Errorf("Invalid username %q not rejected."+
				"\nexpected: %v\nreceived: %v", u, ErrInvalidUsername, err)
		}
	}
}
