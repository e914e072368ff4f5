// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Keygate is the operator CLI for keygate-service.
//
// Offline commands work on files:
//
//	keygate policy check <file>        parse, validate, list tags
//	keygate policy fingerprint <file>  print the policy fingerprint
//	keygate authkey keypair            generate an age identity
//	keygate authkey seal               generate and seal a master secret
//	keygate authkey mint-token         mint an auth token for testing
//
// Daemon commands talk to the socket given by --socket:
//
//	keygate status
//	keygate authorize --policy <file> --purpose SIGN --key 7
//	keygate rescope --old <file> --new <file> --key 7
//	keygate key-info --key 7
//	keygate auth [--token <file>]
//
// authorize and rescope exit with status 2 when the daemon denies the
// request, so scripts can tell a denial from a failure to ask.
package main
