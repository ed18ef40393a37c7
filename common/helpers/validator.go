// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package helpers

import (
	"net"
	"net/netip"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// Validate is the validator used for all configurations. Besides the
// stock validations, it knows about "listen".
var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("listen", func(fl validator.FieldLevel) bool {
		return validListen(v, fl.Field().String())
	})
	return v
}

// validListen accepts host:port where the port fits in 16 bits and the
// host, if any, is an IP address or a DNS name.
func validListen(v *validator.Validate, value string) bool {
	host, port, err := net.SplitHostPort(value)
	if err != nil {
		return false
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return false
	}
	if host == "" {
		return true
	}
	if _, err := netip.ParseAddr(host); err == nil {
		return true
	}
	return v.Var(host, "hostname_rfc1123") == nil
}
