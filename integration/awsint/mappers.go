package awsint

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/laikahq/sync-engine/mapper"
	"github.com/laikahq/sync-engine/objectspec"
)

const sourceSystem = "AWS"

func iamUserRecord(u iamtypes.User) map[string]any {
	created := ""
	if u.CreateDate != nil {
		created = u.CreateDate.UTC().Format(time.RFC3339)
	}

	return map[string]any{
		"arn":        aws.ToString(u.Arn),
		"userName":   aws.ToString(u.UserName),
		"path":       aws.ToString(u.Path),
		"createDate": created,
	}
}

func instanceRecord(i ec2types.Instance) map[string]any {
	name := ""
	for _, tag := range i.Tags {
		if aws.ToString(tag.Key) == "Name" {
			name = aws.ToString(tag.Value)
		}
	}

	zone := ""
	if i.Placement != nil {
		zone = aws.ToString(i.Placement.AvailabilityZone)
	}

	running := i.State != nil && i.State.Name == ec2types.InstanceStateNameRunning

	return map[string]any{
		"instanceId":   aws.ToString(i.InstanceId),
		"name":         name,
		"instanceType": string(i.InstanceType),
		"platform":     aws.ToString(i.PlatformDetails),
		"zone":         zone,
		"running":      running,
	}
}

func serviceAccountMapper() mapper.Mapper {
	return mapper.New(&objectspec.ServiceAccount, []string{objectspec.AttrID}, func(raw map[string]any, alias string) (map[string]any, error) {
		return map[string]any{
			objectspec.AttrID:           raw["arn"],
			"Display Name":              raw["userName"],
			"Description":               raw["path"],
			"Owner Id":                  "",
			"Created Date":              raw["createDate"],
			"Email":                     "",
			"Roles":                     nil,
			"Is Active":                 true,
			objectspec.AttrSourceSystem: sourceSystem,
			objectspec.AttrConnection:   alias,
		}, nil
	})
}

func deviceMapper() mapper.Mapper {
	return mapper.New(&objectspec.Device, []string{objectspec.AttrID}, func(raw map[string]any, alias string) (map[string]any, error) {
		return map[string]any{
			objectspec.AttrID:           raw["instanceId"],
			"Name":                      raw["name"],
			"Device Type":               "server",
			"Company Issued":            true,
			"Serial Number":             raw["instanceId"],
			"Model":                     raw["instanceType"],
			"Brand":                     "Amazon EC2",
			"Operating System":          raw["platform"],
			"OS Version":                "",
			"Location":                  raw["zone"],
			"Owner":                     "",
			"Issuance Status":           issuance(raw["running"]),
			"Anti Virus Status":         "",
			"Encryption Status":         "",
			"Purchased On":              "",
			"Cost":                      0,
			"Note":                      "",
			objectspec.AttrSourceSystem: sourceSystem,
			objectspec.AttrConnection:   alias,
		}, nil
	})
}

func issuance(running any) string {
	if running == true {
		return "active"
	}
	return "inactive"
}
