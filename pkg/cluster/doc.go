/*
Package cluster wraps client-go for the pod operations the provisioning
pipeline needs: existence checks, bounded waits and file operations inside
node containers.

# Queries and waits

PodExists, ListNamespaces and ListPods go straight to the API server; nothing
is cached. WaitForPods polls with wait.PollUntilContextTimeout until enough
pods matching the label selectors reach the wanted phase. Exceeding the
timeout is a Timeout error; cancelling the context returns context.Canceled.

# Pod file operations

Exec, Mkdir and CopyFile run over the pod exec subresource (SPDY). Each call
is bounded by the remote timeout and first checks the pod exists, so a
missing pod (ResourceNotFound) is never confused with a failed command or a
broken stream (RemoteOperation). CopyFile streams a single-entry tar into
"tar -x" in the container, the same way kubectl cp does, so the container
image only needs tar.
*/
package cluster
