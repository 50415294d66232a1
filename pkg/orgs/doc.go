// Package orgs is the service layer for organizations, memberships, and role
// assignment. AssignRole is the single resolution entry point: every role
// change flows bridge -> clamp -> permissions -> persist -> cache -> sync
// event -> audit, in that order. The local write is authoritative
// immediately; a failure to enqueue the sync event never rolls it back.
package orgs
