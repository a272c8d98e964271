package amf

type PropsType int

const (
	PROP_TYPE_STRING = iota
	PROP_TYPE_INT
	PROP_TYPE_FLOAT
	PROP_TYPE_BOOL
	PROP_TYPE_ARRAY
	PROP_TYPE_MAP
)

type PropsValue struct {
	Type  PropsType
	Value interface{}
}

// Properties 网格附加属性
type Properties map[string]PropsValue

func (p Properties) SetString(key, v string) {
	p[key] = PropsValue{Type: PROP_TYPE_STRING, Value: v}
}

func (p Properties) SetInt(key string, v int64) {
	p[key] = PropsValue{Type: PROP_TYPE_INT, Value: v}
}

func (p Properties) SetFloat(key string, v float64) {
	p[key] = PropsValue{Type: PROP_TYPE_FLOAT, Value: v}
}

func (p Properties) SetBool(key string, v bool) {
	p[key] = PropsValue{Type: PROP_TYPE_BOOL, Value: v}
}

func (p Properties) SetInts(key string, vs []int) {
	arr := make([]PropsValue, len(vs))
	for i, v := range vs {
		arr[i] = PropsValue{Type: PROP_TYPE_INT, Value: int64(v)}
	}
	p[key] = PropsValue{Type: PROP_TYPE_ARRAY, Value: arr}
}

func (p Properties) SetMap(key string, v Properties) {
	p[key] = PropsValue{Type: PROP_TYPE_MAP, Value: v}
}

// propsToMap 将Properties转换为map[string]interface{}格式，以便写入GLTF extras
func propsToMap(props *Properties) map[string]interface{} {
	if props == nil {
		return nil
	}

	result := make(map[string]interface{})
	for key, value := range *props {
		result[key] = propsValueToInterface(value)
	}
	return result
}

// propsValueToInterface 将PropsValue转换为interface{}格式
func propsValueToInterface(value PropsValue) interface{} {
	switch value.Type {
	case PROP_TYPE_STRING:
		return value.Value.(string)
	case PROP_TYPE_INT:
		return value.Value.(int64)
	case PROP_TYPE_FLOAT:
		return value.Value.(float64)
	case PROP_TYPE_BOOL:
		return value.Value.(bool)
	case PROP_TYPE_ARRAY:
		arr := value.Value.([]PropsValue)
		result := make([]interface{}, len(arr))
		for i, item := range arr {
			result[i] = propsValueToInterface(item)
		}
		return result
	case PROP_TYPE_MAP:
		subProps := value.Value.(Properties)
		return propsToMap(&subProps)
	default:
		return nil
	}
}
