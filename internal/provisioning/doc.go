// Package provisioning declares and runs the dependency graph that takes an
// empty AWS account to a running single-node Talos cluster managed by ArgoCD.
//
// # Steps
//
// A Plan registers one graph step per resource or operation:
//
//   - aws: VPC, subnet, internet gateway, route table, security group, IAM
//     role, policies and instance profile, Elastic IP, instance, address
//     association, and the S3 etcd backup bucket
//   - talos: secrets, machine config, client config, apply, bootstrap,
//     health gate and kubeconfig
//   - kubernetes and argocd: namespaces, secrets, the ArgoCD release, the
//     root application and the admin password
//   - local: talosconfig and kubeconfig files
//
// Steps read their inputs from the typed values of the steps they depend on,
// so the graph encodes every ordering constraint. Independent branches run
// concurrently.
//
// # Core Types
//
// Context carries configuration, the persisted state session, the change set
// and the Observer. Platform holds the backends, which are interfaces so the
// graph can be exercised with fakes.
package provisioning
