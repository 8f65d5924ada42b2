// Package creds fetches streaming connection credentials from the
// collaborator REST endpoint: one URL plus opaque auth payload per
// channel, obtained once per session lifetime with a bearer token.
package creds
