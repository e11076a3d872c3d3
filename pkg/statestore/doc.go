// Package statestore provides StateStore implementations: a local
// filesystem store and a remote store over SSH/SFTP for environments
// whose state directories live on a remote docker host. Both are
// idempotent: removing an absent path is success.
package statestore
