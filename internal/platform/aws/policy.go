package aws

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
)

// PolicyVersion is the IAM policy language version.
const PolicyVersion = "2012-10-17"

// PolicyDocument represents an IAM policy document.
type PolicyDocument struct {
	Version   string            `json:"Version"`
	Statement []PolicyStatement `json:"Statement"`
}

// PolicyStatement represents an IAM policy statement.
type PolicyStatement struct {
	Sid       string            `json:"Sid,omitempty"`
	Effect    string            `json:"Effect"`
	Principal map[string]string `json:"Principal,omitempty"`
	Action    []string          `json:"Action"`
	Resource  []string          `json:"Resource,omitempty"`
}

// JSON renders the document.
func (d PolicyDocument) JSON() (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to marshal policy document: %w", err)
	}
	return string(data), nil
}

// AssumeRolePolicy lets EC2 instances assume the role.
func AssumeRolePolicy() PolicyDocument {
	return PolicyDocument{
		Version: PolicyVersion,
		Statement: []PolicyStatement{{
			Effect:    "Allow",
			Principal: map[string]string{"Service": "ec2.amazonaws.com"},
			Action:    []string{"sts:AssumeRole"},
		}},
	}
}

// EBSCSIPolicy grants the volume lifecycle actions the EBS CSI driver needs.
func EBSCSIPolicy() PolicyDocument {
	return PolicyDocument{
		Version: PolicyVersion,
		Statement: []PolicyStatement{{
			Effect: "Allow",
			Action: []string{
				"ec2:CreateSnapshot",
				"ec2:AttachVolume",
				"ec2:DetachVolume",
				"ec2:ModifyVolume",
				"ec2:DescribeAvailabilityZones",
				"ec2:DescribeInstances",
				"ec2:DescribeSnapshots",
				"ec2:DescribeTags",
				"ec2:DescribeVolumes",
				"ec2:DescribeVolumesModifications",
				"ec2:CreateVolume",
				"ec2:DeleteVolume",
				"ec2:DeleteSnapshot",
				"ec2:CreateTags",
				"ec2:DeleteTags",
			},
			Resource: []string{"*"},
		}},
	}
}

// EtcdBackupPolicy grants object read, write and list on the backup bucket only.
func EtcdBackupPolicy(bucket string) PolicyDocument {
	arn := "arn:aws:s3:::" + bucket
	return PolicyDocument{
		Version: PolicyVersion,
		Statement: []PolicyStatement{{
			Effect:   "Allow",
			Action:   []string{"s3:PutObject", "s3:GetObject", "s3:ListBucket"},
			Resource: []string{arn, arn + "/*"},
		}},
	}
}

// CloudWatchLogsPolicy grants log delivery into groups under prefix.
func CloudWatchLogsPolicy(region, prefix string) PolicyDocument {
	return PolicyDocument{
		Version: PolicyVersion,
		Statement: []PolicyStatement{{
			Effect: "Allow",
			Action: []string{
				"logs:CreateLogGroup",
				"logs:CreateLogStream",
				"logs:PutLogEvents",
				"logs:DescribeLogGroups",
				"logs:DescribeLogStreams",
			},
			Resource: []string{fmt.Sprintf("arn:aws:logs:%s:*:log-group:%s*", region, prefix)},
		}},
	}
}

// policyEqual compares a document returned by IAM (URL-encoded JSON) with a
// desired document, ignoring formatting.
func policyEqual(encoded string, desired PolicyDocument) bool {
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return false
	}
	var have, want any
	if err := json.Unmarshal([]byte(decoded), &have); err != nil {
		return false
	}
	raw, err := json.Marshal(desired)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, &want); err != nil {
		return false
	}
	return reflect.DeepEqual(normalizePolicy(have), normalizePolicy(want))
}

// normalizePolicy turns single-element string lists into plain strings, since
// IAM may return either form.
func normalizePolicy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizePolicy(val)
		}
		return out
	case []any:
		if len(t) == 1 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizePolicy(val)
		}
		return out
	default:
		return v
	}
}
