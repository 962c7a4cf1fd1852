////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/ekv"
	"gitlab.com/parley/client/storage/versioned"
	"golang.org/x/crypto/bcrypt"
)

const (
	localProviderPrefix     = "identityProvider"
	localCredentialsVersion = 0
	minPasswordLength       = 6
)

// Messages returned by the LocalProvider. They are shown to users verbatim.
const (
	emailInUseMsg      = "the email address is already in use by another account"
	invalidEmailMsg    = "the email address is badly formatted"
	weakPasswordMsg    = "password should be at least 6 characters"
	wrongCredentialMsg = "the email or password is invalid"
)

// LocalProvider is a Provider that keeps bcrypt hashed credentials in an
// ekv.KeyValue. It backs the command line client and tests.
type LocalProvider struct {
	kv   *versioned.KV
	cost int

	current string
	mux     sync.Mutex
}

type localCredentials struct {
	UID  string `json:"uid"`
	Hash []byte `json:"hash"`
}

// NewLocalProvider returns a LocalProvider storing credentials in kv. A cost
// of zero uses bcrypt.DefaultCost.
func NewLocalProvider(kv ekv.KeyValue, cost int) *LocalProvider {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &LocalProvider{
		kv:   versioned.NewKV(kv).Prefix(localProviderPrefix),
		cost: cost,
	}
}

// CreateUser registers the email and password and returns a new uid.
func (lp *LocalProvider) CreateUser(
	_ context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") || strings.ContainsAny(email, " \t\n") {
		return "", errors.New(invalidEmailMsg)
	}
	if len(password) < minPasswordLength {
		return "", errors.New(weakPasswordMsg)
	}

	lp.mux.Lock()
	defer lp.mux.Unlock()

	var existing localCredentials
	err := lp.kv.GetJSON(email, localCredentialsVersion, &existing)
	if err == nil {
		return "", errors.New(emailInUseMsg)
	} else if lp.kv.Exists(err) {
		return "", errors.WithMessage(err, "failed to check credentials")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), lp.cost)
	if err != nil {
		return "", errors.Wrap(err, "failed to hash password")
	}
	creds := localCredentials{UID: uuid.NewString(), Hash: hash}
	if err = lp.kv.SetJSON(email, localCredentialsVersion, creds); err != nil {
		return "", errors.WithMessage(err, "failed to store credentials")
	}

	jww.INFO.Printf("Created local credentials for uid %s", creds.UID)
	lp.current = creds.UID
	return creds.UID, nil
}

// SignIn checks the password against the stored hash.
func (lp *LocalProvider) SignIn(
	_ context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	lp.mux.Lock()
	defer lp.mux.Unlock()

	var creds localCredentials
	if err := lp.kv.GetJSON(
		email, localCredentialsVersion, &creds); err != nil {
		if !lp.kv.Exists(err) {
			return "", errors.New(wrongCredentialMsg)
		}
		return "", errors.WithMessage(err, "failed to load credentials")
	}
	if err := bcrypt.CompareHashAndPassword(
		creds.Hash, []byte(password)); err != nil {
		return "", errors.New(wrongCredentialMsg)
	}

	lp.current = creds.UID
	return creds.UID, nil
}

// SignOut forgets the signed in uid.
func (lp *LocalProvider) SignOut(context.Context) error {
	lp.mux.Lock()
	lp.current = ""
	lp.mux.Unlock()
	return nil
}

// Current returns the signed in uid, if any.
func (lp *LocalProvider) Current() (string, bool) {
	lp.mux.Lock()
	defer lp.mux.Unlock()
	return lp.current, lp.current != ""
}
