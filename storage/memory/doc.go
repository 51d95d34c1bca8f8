// Package memory provides an in-memory implementation of the storage
// interfaces. It is suitable for development, testing, and single-instance
// deployments; its state does not survive a restart and is not shared
// across instances, so lockouts and token validity are enforced per
// process. Use the valkey backend when those guarantees must hold across a
// horizontally scaled deployment.
package memory
