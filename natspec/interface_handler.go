// Package natspec derives the per-contract interface and documentation
// artifacts: the ABI JSON descriptor, a source-language-shaped interface,
// and the NatSpec user and developer documents extracted from `///` doc
// comments.
package natspec

import (
	"encoding/json"
	"strings"

	"github.com/ethforge/solstack/ast"
	"github.com/ethforge/solstack/solerr"
)

// DocumentationType enumerates the documentation artifacts a contract
// exposes.
type DocumentationType int

const (
	// NatspecUser is the end-user documentation JSON.
	NatspecUser DocumentationType = iota
	// NatspecDev is the developer documentation JSON.
	NatspecDev
	// ABIInterface is the ABI JSON descriptor.
	ABIInterface
	// ABISolidityInterface is the source-language-shaped interface.
	ABISolidityInterface
)

// InterfaceHandler computes documentation artifacts from resolved contract
// definitions. It is stateless; one instance can serve many contracts.
type InterfaceHandler struct{}

// NewInterfaceHandler creates a handler.
func NewInterfaceHandler() *InterfaceHandler {
	return &InterfaceHandler{}
}

// Documentation returns the artifact of the given type for a contract. An
// unknown documentation type is an internal error.
func (h *InterfaceHandler) Documentation(contract *ast.ContractDefinition, docType DocumentationType) (string, error) {
	switch docType {
	case NatspecUser:
		return h.UserDocumentation(contract)
	case NatspecDev:
		return h.DevDocumentation(contract)
	case ABIInterface:
		return h.ABIInterface(contract)
	case ABISolidityInterface:
		return h.SolidityInterface(contract)
	default:
		return "", solerr.NewInternalCompilerError("illegal documentation type %d", docType)
	}
}

// abiParameter is one entry of an ABI function's inputs or outputs list.
type abiParameter struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// abiEntry is one function of the ABI descriptor.
type abiEntry struct {
	Type     string         `json:"type"`
	Name     string         `json:"name"`
	Constant bool           `json:"constant"`
	Inputs   []abiParameter `json:"inputs"`
	Outputs  []abiParameter `json:"outputs"`
}

// ABIInterface returns the ABI JSON descriptor listing the contract's
// externally callable functions, sorted in interface order.
func (h *InterfaceHandler) ABIInterface(contract *ast.ContractDefinition) (string, error) {
	entries := make([]abiEntry, 0)
	for _, fn := range contract.InterfaceFunctions() {
		entries = append(entries, abiEntry{
			Type:     "function",
			Name:     fn.Name(),
			Constant: fn.Constant,
			Inputs:   abiParameters(fn.Parameters),
			Outputs:  abiParameters(fn.ReturnParameters),
		})
	}
	encoded, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func abiParameters(list *ast.ParameterList) []abiParameter {
	params := make([]abiParameter, 0)
	if list == nil {
		return params
	}
	for _, param := range list.Parameters {
		typeName := ""
		if param.Type() != nil {
			typeName = param.Type().String()
		} else if param.TypeName != nil {
			typeName = param.TypeName.Name
		}
		params = append(params, abiParameter{Name: param.Name(), Type: typeName})
	}
	return params
}

// SolidityInterface returns a source-shaped interface of the contract:
// every externally callable function as an unimplemented declaration.
func (h *InterfaceHandler) SolidityInterface(contract *ast.ContractDefinition) (string, error) {
	var b strings.Builder
	b.WriteString("contract ")
	b.WriteString(contract.Name())
	b.WriteString("{")
	for _, fn := range contract.InterfaceFunctions() {
		b.WriteString("function ")
		b.WriteString(fn.Name())
		b.WriteString("(")
		writeParameters(&b, fn.Parameters)
		b.WriteString(")")
		if fn.Constant {
			b.WriteString("constant ")
		}
		if len(fn.ReturnParameters.Parameters) > 0 {
			b.WriteString("returns(")
			writeParameters(&b, fn.ReturnParameters)
			b.WriteString(")")
		}
		b.WriteString(";")
	}
	b.WriteString("}")
	return b.String(), nil
}

func writeParameters(b *strings.Builder, list *ast.ParameterList) {
	for i, param := range list.Parameters {
		if i > 0 {
			b.WriteString(",")
		}
		if param.Type() != nil {
			b.WriteString(param.Type().String())
		} else if param.TypeName != nil {
			b.WriteString(param.TypeName.Name)
		}
		if param.Name() != "" {
			b.WriteString(" ")
			b.WriteString(param.Name())
		}
	}
}

// natspecUserDoc is the shape of the user documentation JSON.
type natspecUserDoc struct {
	Methods map[string]map[string]string `json:"methods"`
}

// UserDocumentation returns the NatSpec user document: the `@notice` text of
// every documented externally callable function, keyed by signature.
func (h *InterfaceHandler) UserDocumentation(contract *ast.ContractDefinition) (string, error) {
	doc := natspecUserDoc{Methods: make(map[string]map[string]string)}
	for _, fn := range contract.InterfaceFunctions() {
		tags := parseDocTags(fn.DocString)
		if notice, ok := tags["notice"]; ok {
			doc.Methods[fn.Signature()] = map[string]string{"notice": notice}
		}
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// natspecDevMethod is one method's developer documentation.
type natspecDevMethod struct {
	Details string            `json:"details,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
	Return  string            `json:"return,omitempty"`
}

// natspecDevDoc is the shape of the developer documentation JSON.
type natspecDevDoc struct {
	Author  string                      `json:"author,omitempty"`
	Title   string                      `json:"title,omitempty"`
	Methods map[string]natspecDevMethod `json:"methods"`
}

// DevDocumentation returns the NatSpec developer document: contract-level
// `@author`/`@title` plus per-method `@dev`, `@param` and `@return` tags.
func (h *InterfaceHandler) DevDocumentation(contract *ast.ContractDefinition) (string, error) {
	contractTags := parseDocTags(contract.DocString)
	doc := natspecDevDoc{
		Author:  contractTags["author"],
		Title:   contractTags["title"],
		Methods: make(map[string]natspecDevMethod),
	}
	for _, fn := range contract.InterfaceFunctions() {
		tags := parseDocTags(fn.DocString)
		method := natspecDevMethod{
			Details: tags["dev"],
			Return:  tags["return"],
		}
		params := make(map[string]string)
		for name, text := range tags {
			if rest, isParam := strings.CutPrefix(name, "param "); isParam {
				params[rest] = text
			}
		}
		if len(params) > 0 {
			method.Params = params
		}
		if method.Details != "" || method.Return != "" || len(params) > 0 {
			doc.Methods[fn.Signature()] = method
		}
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// parseDocTags splits a raw `///` documentation block into its tags. Text
// before the first tag is treated as `@notice`. `@param` tags are keyed as
// "param <name>".
func parseDocTags(doc string) map[string]string {
	tags := make(map[string]string)
	if strings.TrimSpace(doc) == "" {
		return tags
	}
	current := "notice"
	var currentText []string
	flush := func() {
		text := strings.TrimSpace(strings.Join(currentText, " "))
		if text != "" {
			if existing, ok := tags[current]; ok {
				text = existing + " " + text
			}
			tags[current] = text
		}
		currentText = nil
	}
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "@") {
			flush()
			fields := strings.SplitN(line[1:], " ", 2)
			current = fields[0]
			rest := ""
			if len(fields) > 1 {
				rest = fields[1]
			}
			if current == "param" {
				nameAndText := strings.SplitN(rest, " ", 2)
				current = "param " + nameAndText[0]
				rest = ""
				if len(nameAndText) > 1 {
					rest = nameAndText[1]
				}
			}
			currentText = append(currentText, rest)
			continue
		}
		currentText = append(currentText, line)
	}
	flush()
	return tags
}
