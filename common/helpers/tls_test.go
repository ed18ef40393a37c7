// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package helpers_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"sflowhdr/common/helpers"
)

func TestTLSConfigurationDecode(t *testing.T) {
	helpers.TestConfigurationDecode(t, helpers.ConfigurationDecodeCases{
		{
			Pos:         helpers.Mark(),
			Description: "skip-verify",
			Initial:     func() any { return helpers.TLSConfiguration{} },
			Configuration: func() any {
				return gin.H{
					"enable":      true,
					"skip-verify": true,
				}
			},
			Expected: helpers.TLSConfiguration{
				Enable:     true,
				SkipVerify: true,
			},
		}, {
			Pos:         helpers.Mark(),
			Description: "verify=false",
			Initial:     func() any { return helpers.TLSConfiguration{} },
			Configuration: func() any {
				return gin.H{
					"enable": true,
					"verify": false,
				}
			},
			Expected: helpers.TLSConfiguration{
				Enable:     true,
				SkipVerify: true,
			},
		}, {
			Pos:         helpers.Mark(),
			Description: "verify=true",
			Initial:     func() any { return helpers.TLSConfiguration{} },
			Configuration: func() any {
				return gin.H{
					"enable": true,
					"verify": true,
				}
			},
			Expected: helpers.TLSConfiguration{
				Enable: true,
			},
		}, {
			Pos:         helpers.Mark(),
			Description: "both verify and skip-verify",
			Initial:     func() any { return helpers.TLSConfiguration{} },
			Configuration: func() any {
				return gin.H{
					"enable":      true,
					"verify":      true,
					"skip-verify": true,
				}
			},
			Error: true,
		}, {
			Pos:         helpers.Mark(),
			Description: "server name",
			Initial:     func() any { return helpers.TLSConfiguration{} },
			Configuration: func() any {
				return gin.H{
					"enable":      true,
					"server-name": "kafka.example.net",
				}
			},
			Expected: helpers.TLSConfiguration{
				Enable:     true,
				ServerName: "kafka.example.net",
			},
		}, {
			Pos:         helpers.Mark(),
			Description: "server name without enable",
			Initial:     func() any { return helpers.TLSConfiguration{} },
			Configuration: func() any {
				return gin.H{
					"server-name": "kafka.example.net",
				}
			},
			Error: true,
		}, {
			Pos:         helpers.Mark(),
			Description: "certificate without enable",
			Initial:     func() any { return helpers.TLSConfiguration{} },
			Configuration: func() any {
				return gin.H{
					"cert-file": "/etc/ssl/cert.pem",
				}
			},
			Error: true,
		},
	})
}

func TestMakeTLSConfig(t *testing.T) {
	got, err := helpers.TLSConfiguration{}.MakeTLSConfig()
	if err != nil {
		t.Fatalf("MakeTLSConfig() error:\n%+v", err)
	}
	if got != nil {
		t.Fatalf("MakeTLSConfig() == %v, expected nil when disabled", got)
	}

	got, err = helpers.TLSConfiguration{Enable: true, SkipVerify: true}.MakeTLSConfig()
	if err != nil {
		t.Fatalf("MakeTLSConfig() error:\n%+v", err)
	}
	if got == nil || !got.InsecureSkipVerify || got.RootCAs != nil {
		t.Fatalf("MakeTLSConfig() == %+v", got)
	}

	got, err = helpers.TLSConfiguration{Enable: true, ServerName: "kafka.example.net"}.MakeTLSConfig()
	if err != nil {
		t.Fatalf("MakeTLSConfig() error:\n%+v", err)
	}
	if got.ServerName != "kafka.example.net" || got.InsecureSkipVerify {
		t.Fatalf("MakeTLSConfig() == %+v", got)
	}

	if _, err := (helpers.TLSConfiguration{
		Enable: true,
		CAFile: filepath.Join(t.TempDir(), "missing.pem"),
	}).MakeTLSConfig(); err == nil {
		t.Fatal("MakeTLSConfig() did not error with a missing CA file")
	}

	garbage := filepath.Join(t.TempDir(), "garbage.pem")
	if err := os.WriteFile(garbage, []byte("not a certificate"), 0o600); err != nil {
		t.Fatalf("WriteFile() error:\n%+v", err)
	}
	if _, err := (helpers.TLSConfiguration{
		Enable: true,
		CAFile: garbage,
	}).MakeTLSConfig(); err == nil {
		t.Fatal("MakeTLSConfig() did not error with an invalid CA file")
	}
}
