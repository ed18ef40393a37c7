// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package helpers

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// TLSConfiguration defines TLS configuration to connect to remote
// servers.
type TLSConfiguration struct {
	// Enable says if TLS should be used.
	Enable bool `validate:"required_with=CAFile CertFile KeyFile ServerName"`
	// SkipVerify disables the verification of the remote certificate.
	SkipVerify bool
	// ServerName overrides the name checked in the remote certificate,
	// for servers reached through their IP addresses.
	ServerName string
	// CAFile is a PEM bundle of CA certificates. System ones are used
	// when empty.
	CAFile string
	// CertFile is the client certificate, if any.
	CertFile string `validate:"required_with=KeyFile"`
	// KeyFile is the client key. It defaults to CertFile.
	KeyFile string
}

// MakeTLSConfig turns a TLSConfiguration into a *tls.Config. It
// returns nil when TLS is disabled.
func (config TLSConfiguration) MakeTLSConfig() (*tls.Config, error) {
	if !config.Enable {
		return nil, nil
	}
	tlsConfig := &tls.Config{
		InsecureSkipVerify: config.SkipVerify,
		ServerName:         config.ServerName,
	}
	if config.CAFile != "" {
		pool, err := loadCertPool(config.CAFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.RootCAs = pool
	}
	if config.CertFile != "" {
		keyFile := config.KeyFile
		if keyFile == "" {
			keyFile = config.CertFile
		}
		cert, err := tls.LoadX509KeyPair(config.CertFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("cannot read user certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("cannot parse CA certificate")
	}
	return pool, nil
}

// tlsVerifyHook accepts "verify" as the negation of "skip-verify".
func tlsVerifyHook(from, to reflect.Value) (interface{}, error) {
	if from.Kind() != reflect.Map || from.IsNil() || to.Type() != reflect.TypeOf(TLSConfiguration{}) {
		return from.Interface(), nil
	}
	var verify, skipVerify reflect.Value
	for _, key := range from.MapKeys() {
		k := ElemOrIdentity(key)
		if k.Kind() != reflect.String {
			return from.Interface(), nil
		}
		switch {
		case MapStructureMatchName(k.String(), "Verify"):
			verify = key
		case MapStructureMatchName(k.String(), "SkipVerify"):
			skipVerify = key
		}
	}
	if !verify.IsValid() {
		return from.Interface(), nil
	}
	if skipVerify.IsValid() {
		return nil, fmt.Errorf("cannot have both %q and %q",
			ElemOrIdentity(verify).String(), ElemOrIdentity(skipVerify).String())
	}
	value := ElemOrIdentity(from.MapIndex(verify))
	if value.Kind() != reflect.Bool {
		return from.Interface(), nil
	}
	from.SetMapIndex(reflect.ValueOf("skip-verify"), reflect.ValueOf(!value.Bool()))
	from.SetMapIndex(verify, reflect.Value{})
	return from.Interface(), nil
}

func init() {
	RegisterMapstructureUnmarshallerHook(mapstructure.DecodeHookFuncValue(tlsVerifyHook))
}
