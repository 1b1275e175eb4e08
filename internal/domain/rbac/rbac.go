// Пакет rbac — определение capability субъекта по ролям из токена.
// Две capability: reader и writer. writer включает reader.
// Итоговая capability = максимальная из всех совпавших ролей.
package rbac

// Capability — право доступа к API брокера.
type Capability string

// Capability в порядке возрастания привилегий.
const (
	CapabilityNone   Capability = ""
	CapabilityReader Capability = "reader"
	CapabilityWriter Capability = "writer"
)

// capabilityWeight — вес capability для сравнения.
var capabilityWeight = map[Capability]int{
	CapabilityNone:   0,
	CapabilityReader: 1,
	CapabilityWriter: 2,
}

// Allows сообщает, покрывает ли c требуемую capability.
func (c Capability) Allows(required Capability) bool {
	return capabilityWeight[c] >= capabilityWeight[required]
}

// String возвращает имя capability ("none" для пустой).
func (c Capability) String() string {
	if c == CapabilityNone {
		return "none"
	}
	return string(c)
}

// RoleNames — имена ролей IdP, дающих capability.
type RoleNames struct {
	Reader string
	Writer string
}

// maxCapability возвращает capability с максимальными привилегиями из двух.
func maxCapability(a, b Capability) Capability {
	if capabilityWeight[a] >= capabilityWeight[b] {
		return a
	}
	return b
}

// Highest возвращает максимальную capability из набора.
func Highest(caps []Capability) Capability {
	highest := CapabilityNone
	for _, c := range caps {
		highest = maxCapability(highest, c)
	}
	return highest
}

// Resolve определяет capability по ролям субъекта.
// roles — объединение realm-ролей и ролей клиентов из токена.
func Resolve(roles []string, names RoleNames) Capability {
	var caps []Capability
	for _, r := range roles {
		switch r {
		case names.Writer:
			caps = append(caps, CapabilityWriter)
		case names.Reader:
			caps = append(caps, CapabilityReader)
		}
	}
	return Highest(caps)
}

// IsValid проверяет, является ли строка известной capability.
func IsValid(c string) bool {
	_, ok := capabilityWeight[Capability(c)]
	return ok && c != ""
}
