package docdb

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/leftmike/pggate/catalog"
	"github.com/leftmike/pggate/docapi"
	"github.com/leftmike/pggate/sql"
	"github.com/leftmike/pggate/status"
)

// Schemas are stored as a marshaled structpb.Struct; only the user columns are stored, the
// system columns are added back by catalog.NewTableDesc.
func encodeSchema(td *catalog.TableDesc) ([]byte, error) {
	var cols []interface{}
	for _, cd := range td.Columns {
		if cd.IsSystem() {
			continue
		}
		cols = append(cols,
			map[string]interface{}{
				"name": cd.Name,
				"type": cd.Type.String(),
				"key":  cd.Key,
			})
	}

	s, err := structpb.NewStruct(
		map[string]interface{}{
			"id":       uint32(td.ID),
			"name":     td.Name,
			"has_oids": td.HasOIDs,
			"columns":  cols,
		})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func decodeSchema(buf []byte) (*catalog.TableDesc, error) {
	var s structpb.Struct
	err := proto.Unmarshal(buf, &s)
	if err != nil {
		return nil, status.Corruptionf("docdb: schema: %s", err)
	}

	fields := s.GetFields()
	var cols []catalog.ColumnDesc
	for _, v := range fields["columns"].GetListValue().GetValues() {
		cf := v.GetStructValue().GetFields()
		typ, err := sql.ParseInternalType(cf["type"].GetStringValue())
		if err != nil {
			return nil, status.Corruptionf("docdb: schema: %s", err)
		}
		cols = append(cols,
			catalog.ColumnDesc{
				Name: cf["name"].GetStringValue(),
				Type: typ,
				Key:  cf["key"].GetBoolValue(),
			})
	}

	return catalog.NewTableDesc(docapi.TableID(fields["id"].GetNumberValue()),
		fields["name"].GetStringValue(), fields["has_oids"].GetBoolValue(), cols), nil
}
