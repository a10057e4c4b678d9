// Package api holds the domain types and error taxonomy shared by every
// other package in the gateway: service definitions, tool policy, the
// capability sets the aggregator caches, and the external-collaborator
// interfaces (ServiceRepository, ProjectStore, SecretProvider) that the core
// depends on without owning.
package api
