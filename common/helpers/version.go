// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package helpers

// Version is the version of the running binary. It is set at build
// time with -ldflags.
var Version = "dev"
