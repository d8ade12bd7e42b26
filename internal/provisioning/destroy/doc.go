// Package destroy tears down the cloud resources a previous apply recorded
// in state.
//
// Resources are deleted in the reverse of their creation order: the
// address association and instance first, then the Elastic IP, the
// instance identity, the security group and finally the network. Each
// resource is cleared from state as soon as it is gone, so an interrupted
// destroy can be resumed. The backup bucket is retained unless backups
// are explicitly deleted.
package destroy
