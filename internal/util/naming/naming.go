package naming

import "fmt"

func VPC(cluster string) string {
	return fmt.Sprintf("%s-vpc", cluster)
}

func PublicSubnet(cluster string) string {
	return fmt.Sprintf("%s-public", cluster)
}

func InternetGateway(cluster string) string {
	return fmt.Sprintf("%s-igw", cluster)
}

func RouteTable(cluster string) string {
	return fmt.Sprintf("%s-rt", cluster)
}

func SecurityGroup(cluster string) string {
	return fmt.Sprintf("%s-sg", cluster)
}

func InstanceRole(cluster string) string {
	return fmt.Sprintf("%s-instance-role", cluster)
}

func InstanceProfile(cluster string) string {
	return fmt.Sprintf("%s-instance-profile", cluster)
}

func ElasticIP(cluster string) string {
	return fmt.Sprintf("%s-eip", cluster)
}

func Node(cluster string) string {
	return fmt.Sprintf("%s-node", cluster)
}

func RootVolume(cluster string) string {
	return fmt.Sprintf("%s-root", cluster)
}

// BackupBucket returns the etcd backup bucket name.
func BackupBucket(cluster string) string {
	return fmt.Sprintf("%s-etcd-backups", cluster)
}

// Inline policy names attached to the instance role.
const (
	PolicyEBSCSI         = "ebs-csi-policy"
	PolicyEtcdBackup     = "etcd-backup-policy"
	PolicyCloudWatchLogs = "cloudwatch-logs-policy"
)
