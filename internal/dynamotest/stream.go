package dynamotest

import (
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// StreamEvent converts the changes recorded for table into a stream event
// with NEW_AND_OLD_IMAGES records.
func StreamEvent(table string, changes []Change) events.DynamoDBEvent {
	var event events.DynamoDBEvent
	for i, ch := range changes {
		if ch.Table != table {
			continue
		}
		event.Records = append(event.Records, events.DynamoDBEventRecord{
			EventID:   fmt.Sprintf("%d", i),
			EventName: ch.EventName,
			Change: events.DynamoDBStreamRecord{
				Keys:           streamImage(ch.Keys),
				OldImage:       streamImage(ch.OldImage),
				NewImage:       streamImage(ch.NewImage),
				StreamViewType: "NEW_AND_OLD_IMAGES",
			},
		})
	}
	return event
}

func streamImage(item Item) map[string]events.DynamoDBAttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]events.DynamoDBAttributeValue, len(item))
	for k, v := range item {
		out[k] = streamValue(v)
	}
	return out
}

func streamValue(v types.AttributeValue) events.DynamoDBAttributeValue {
	switch tv := v.(type) {
	case *types.AttributeValueMemberS:
		return events.NewStringAttribute(tv.Value)
	case *types.AttributeValueMemberN:
		return events.NewNumberAttribute(tv.Value)
	case *types.AttributeValueMemberB:
		return events.NewBinaryAttribute(tv.Value)
	case *types.AttributeValueMemberBOOL:
		return events.NewBooleanAttribute(tv.Value)
	case *types.AttributeValueMemberSS:
		return events.NewStringSetAttribute(tv.Value)
	case *types.AttributeValueMemberNS:
		return events.NewNumberSetAttribute(tv.Value)
	case *types.AttributeValueMemberBS:
		return events.NewBinarySetAttribute(tv.Value)
	case *types.AttributeValueMemberL:
		list := make([]events.DynamoDBAttributeValue, len(tv.Value))
		for i, e := range tv.Value {
			list[i] = streamValue(e)
		}
		return events.NewListAttribute(list)
	case *types.AttributeValueMemberM:
		m := make(map[string]events.DynamoDBAttributeValue, len(tv.Value))
		for k, e := range tv.Value {
			m[k] = streamValue(e)
		}
		return events.NewMapAttribute(m)
	}
	return events.NewNullAttribute()
}
