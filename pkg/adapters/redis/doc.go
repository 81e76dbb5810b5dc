/*
Package redis provides Redis-backed session hosting for multi-replica deployments:
a StateStore with TTL expiry and a DistributedLocker used by session.Manager.
*/
package redis
