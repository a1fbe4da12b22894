// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

//go:build !darwin

package keychain

import "errors"

var errNoSecurityTool = errors.New("security backend only available on macOS")

// securityBackend is a stub for non-macOS platforms.
type securityBackend struct{}

func newSecurityBackend() (*securityBackend, error) { return nil, errNoSecurityTool }

func (s *securityBackend) Set(key, value string) error    { return errNoSecurityTool }
func (s *securityBackend) Get(key string) (string, error) { return "", errNoSecurityTool }
func (s *securityBackend) Delete(key string) error        { return errNoSecurityTool }
