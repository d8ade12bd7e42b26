package provisioning

import (
	"github.com/faulty-technology/homelab/internal/config"
	"github.com/faulty-technology/homelab/internal/state"
)

// Outputs are the values exported after a successful run.
type Outputs struct {
	NodePublicIP         string `json:"nodePublicIp"`
	NodePrivateIP        string `json:"nodePrivateIp"`
	NodeInstanceID       string `json:"nodeInstanceId"`
	VPCID                string `json:"vpcId"`
	SubnetID             string `json:"subnetId"`
	SecurityGroupID      string `json:"securityGroupId"`
	TalosAMIID           string `json:"talosAmiId"`
	TalosAMIName         string `json:"talosAmiName"`
	EtcdBackupBucketName string `json:"etcdBackupBucketName"`
	Region               string `json:"region"`
	AvailabilityZone     string `json:"availabilityZone"`

	// ArgoCDAdminPassword is secret.
	ArgoCDAdminPassword string `json:"argocdAdminPassword"`
}

// OutputsFromState derives the outputs from a state record.
func OutputsFromState(st state.State) Outputs {
	return Outputs{
		NodePublicIP:         st.AWS.PublicIP,
		NodePrivateIP:        st.AWS.PrivateIP,
		NodeInstanceID:       st.AWS.InstanceID,
		VPCID:                st.AWS.VPCID,
		SubnetID:             st.AWS.SubnetID,
		SecurityGroupID:      st.AWS.SecurityGroupID,
		TalosAMIID:           st.AWS.AMIID,
		TalosAMIName:         st.AWS.AMIName,
		EtcdBackupBucketName: st.AWS.BucketName,
		Region:               config.Region,
		AvailabilityZone:     config.AvailabilityZone,
		ArgoCDAdminPassword:  st.Kubernetes.ArgoCDAdminPassword,
	}
}

// Masked returns a copy with secret outputs replaced by a placeholder.
func (o Outputs) Masked() Outputs {
	if o.ArgoCDAdminPassword != "" {
		o.ArgoCDAdminPassword = "[secret]"
	}
	return o
}

// Pairs returns the outputs as ordered name/value pairs.
func (o Outputs) Pairs() [][2]string {
	return [][2]string{
		{"nodePublicIp", o.NodePublicIP},
		{"nodePrivateIp", o.NodePrivateIP},
		{"nodeInstanceId", o.NodeInstanceID},
		{"vpcId", o.VPCID},
		{"subnetId", o.SubnetID},
		{"securityGroupId", o.SecurityGroupID},
		{"talosAmiId", o.TalosAMIID},
		{"talosAmiName", o.TalosAMIName},
		{"etcdBackupBucketName", o.EtcdBackupBucketName},
		{"region", o.Region},
		{"availabilityZone", o.AvailabilityZone},
		{"argocdAdminPassword", o.ArgoCDAdminPassword},
	}
}
