// Package procfile loads procedures written as YAML documents.
//
// A file holds a list of procedures:
//
//	procedures:
//	  - name: diamond
//	    params: [a]
//	    blocks:
//	      - label: entry
//	        branch: {cond: {cmp: ">", x: a, y: 0}, true: then, false: else}
//	      - label: then
//	        stmts:
//	          - {assign: x, value: 1}
//	        goto: exit
//	      - label: else
//	        stmts:
//	          - {assign: x, value: 2}
//	        goto: exit
//	      - label: exit
//	        return: x
//
// Operands are scalars or single-purpose mappings. Numbers and booleans are
// literals and bare strings name locals; {lit: v} is any literal,
// {field: f, base: o} a heap field, {static: f} a static field,
// {op: name, args: [...]} an opaque operation, {cmp: op, x: ..., y: ...} a
// comparison, {and: [...]}, {or: [...]} and {not: ...} boolean connectives.
package procfile

import (
	"bytes"
	"io"
	"os"

	"github.com/nikandfor/errors"
	"gopkg.in/yaml.v3"

	"github.com/malphas-lang/ifconv/internal/diag"
	"github.com/malphas-lang/ifconv/internal/mir"
)

// LoadFile reads the procedures of the YAML file at path.
func LoadFile(path string) (*mir.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read procedures")
	}
	return Parse(data, path)
}

// Load reads the procedures of a YAML document from r.
func Load(r io.Reader) (*mir.Module, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read procedures")
	}
	return Parse(data, "")
}

// Parse decodes a YAML document. filename is only used in diagnostics.
func Parse(data []byte, filename string) (*mir.Module, error) {
	var doc yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return &mir.Module{}, nil
		}
		return nil, diag.Errorf(diag.StageFrontend, diag.CodeFrontendSyntax,
			"invalid YAML").Wrap(err).At(diag.Span{Filename: filename})
	}

	p := &parser{filename: filename}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) == 1 {
		root = root.Content[0]
	}
	fields, err := p.mapping(root, "procedures")
	if err != nil {
		return nil, err
	}
	procs := fields["procedures"]
	if procs == nil {
		return &mir.Module{}, nil
	}
	if procs.Kind != yaml.SequenceNode {
		return nil, p.errorf(procs, "procedures must be a list")
	}

	module := &mir.Module{}
	seen := make(map[string]bool)
	for _, n := range procs.Content {
		fn, err := p.procedure(n)
		if err != nil {
			return nil, err
		}
		if seen[fn.Name] {
			return nil, p.errorf(n, "procedure %s defined twice", fn.Name)
		}
		seen[fn.Name] = true
		module.Functions = append(module.Functions, fn)
	}
	return module, nil
}

type parser struct {
	filename string

	// procedure being parsed
	proc   string
	block  string
	fn     *mir.Function
	locals map[string]mir.Local
	blocks map[string]*mir.BasicBlock
	nextID int
}

func (p *parser) errorf(n *yaml.Node, format string, args ...interface{}) *diag.Error {
	return diag.Errorf(diag.StageFrontend, diag.CodeFrontendSyntax, format, args...).At(diag.Span{
		Filename:  p.filename,
		Line:      n.Line,
		Column:    n.Column,
		Procedure: p.proc,
		Block:     p.block,
	})
}

// mapping returns the values of a mapping node by key. Keys outside allowed
// are rejected.
func (p *parser) mapping(n *yaml.Node, allowed ...string) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, p.errorf(n, "expected a mapping")
	}
	fields := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		known := false
		for _, a := range allowed {
			if key.Value == a {
				known = true
				break
			}
		}
		if !known {
			return nil, p.errorf(key, "unknown key %q", key.Value)
		}
		if _, dup := fields[key.Value]; dup {
			return nil, p.errorf(key, "duplicate key %q", key.Value)
		}
		fields[key.Value] = n.Content[i+1]
	}
	return fields, nil
}

func (p *parser) str(n *yaml.Node, what string) (string, error) {
	if n == nil {
		return "", nil
	}
	if n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return "", p.errorf(n, "%s must be a string", what)
	}
	return n.Value, nil
}

func (p *parser) strings(n *yaml.Node, what string) ([]string, error) {
	if n == nil {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, p.errorf(n, "%s must be a list", what)
	}
	out := make([]string, 0, len(n.Content))
	for _, item := range n.Content {
		s, err := p.str(item, what)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (p *parser) declare(name string) mir.Local {
	l := mir.Local{ID: p.nextID, Name: name}
	p.nextID++
	p.locals[name] = l
	return l
}

// local returns the local called name, declaring it on first use.
func (p *parser) local(name string) mir.Local {
	if l, ok := p.locals[name]; ok {
		return l
	}
	l := p.declare(name)
	p.fn.Locals = append(p.fn.Locals, l)
	return l
}

func (p *parser) procedure(n *yaml.Node) (*mir.Function, error) {
	p.proc, p.block = "", ""
	fields, err := p.mapping(n, "name", "params", "locals", "entry", "blocks")
	if err != nil {
		return nil, err
	}
	name, err := p.str(fields["name"], "name")
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, p.errorf(n, "procedure without a name")
	}
	p.proc = name
	p.fn = &mir.Function{Name: name}
	p.locals = make(map[string]mir.Local)
	p.blocks = make(map[string]*mir.BasicBlock)
	p.nextID = 0

	params, err := p.strings(fields["params"], "params")
	if err != nil {
		return nil, err
	}
	for _, name := range params {
		if _, dup := p.locals[name]; dup {
			return nil, p.errorf(fields["params"], "parameter %s declared twice", name)
		}
		p.fn.Params = append(p.fn.Params, p.declare(name))
	}
	locals, err := p.strings(fields["locals"], "locals")
	if err != nil {
		return nil, err
	}
	for _, name := range locals {
		p.local(name)
	}

	blocks := fields["blocks"]
	if blocks == nil || blocks.Kind != yaml.SequenceNode || len(blocks.Content) == 0 {
		return nil, p.errorf(n, "procedure %s needs a non-empty list of blocks", name)
	}
	// Declare every block first so terminators may jump forward.
	bodies := make([]map[string]*yaml.Node, len(blocks.Content))
	for i, bn := range blocks.Content {
		p.block = ""
		bf, err := p.mapping(bn, "label", "stmts", "branch", "goto", "return")
		if err != nil {
			return nil, err
		}
		label, err := p.str(bf["label"], "label")
		if err != nil {
			return nil, err
		}
		if label == "" {
			return nil, p.errorf(bn, "block without a label")
		}
		if p.blocks[label] != nil {
			return nil, p.errorf(bf["label"], "block %s defined twice", label)
		}
		block := &mir.BasicBlock{Label: label}
		p.blocks[label] = block
		p.fn.Blocks = append(p.fn.Blocks, block)
		bodies[i] = bf
	}
	for i, bn := range blocks.Content {
		if err := p.blockBody(p.fn.Blocks[i], bn, bodies[i]); err != nil {
			return nil, err
		}
	}

	p.block = ""
	p.fn.Entry = p.fn.Blocks[0]
	if en := fields["entry"]; en != nil {
		label, err := p.str(en, "entry")
		if err != nil {
			return nil, err
		}
		if p.fn.Entry = p.blocks[label]; p.fn.Entry == nil {
			return nil, p.errorf(en, "entry block %s does not exist", label)
		}
	}
	return p.fn, nil
}

func (p *parser) blockBody(block *mir.BasicBlock, n *yaml.Node, fields map[string]*yaml.Node) error {
	p.block = block.Label
	if stmts := fields["stmts"]; stmts != nil {
		if stmts.Kind != yaml.SequenceNode {
			return p.errorf(stmts, "stmts must be a list")
		}
		for _, sn := range stmts.Content {
			stmt, err := p.statement(sn)
			if err != nil {
				return err
			}
			block.Statements = append(block.Statements, stmt)
		}
	}

	var terms []string
	for _, key := range []string{"branch", "goto", "return"} {
		if _, ok := fields[key]; ok {
			terms = append(terms, key)
		}
	}
	if len(terms) != 1 {
		return p.errorf(n, "block %s needs exactly one of branch, goto or return", block.Label)
	}

	var err error
	switch terms[0] {
	case "branch":
		block.Terminator, err = p.branch(fields["branch"])
	case "goto":
		var target *mir.BasicBlock
		target, err = p.target(fields["goto"])
		block.Terminator = &mir.Goto{Target: target}
	case "return":
		ret := &mir.Return{}
		if rn := fields["return"]; rn.Tag != "!!null" {
			ret.Value, err = p.operand(rn)
		}
		block.Terminator = ret
	}
	return err
}

func (p *parser) target(n *yaml.Node) (*mir.BasicBlock, error) {
	label, err := p.str(n, "target")
	if err != nil {
		return nil, err
	}
	block := p.blocks[label]
	if block == nil {
		return nil, p.errorf(n, "unknown block %s", label)
	}
	return block, nil
}

func (p *parser) branch(n *yaml.Node) (*mir.Branch, error) {
	fields, err := p.mapping(n, "cond", "true", "false")
	if err != nil {
		return nil, err
	}
	if fields["cond"] == nil || fields["true"] == nil || fields["false"] == nil {
		return nil, p.errorf(n, "branch needs cond, true and false")
	}
	cond, err := p.condition(fields["cond"])
	if err != nil {
		return nil, err
	}
	t, err := p.target(fields["true"])
	if err != nil {
		return nil, err
	}
	f, err := p.target(fields["false"])
	if err != nil {
		return nil, err
	}
	return &mir.Branch{Condition: cond, True: t, False: f}, nil
}

func (p *parser) statement(n *yaml.Node) (mir.Statement, error) {
	fields, err := p.mapping(n, "assign", "value", "invoke", "args")
	if err != nil {
		return nil, err
	}
	switch {
	case fields["assign"] != nil:
		if fields["value"] == nil || fields["invoke"] != nil || fields["args"] != nil {
			return nil, p.errorf(n, "assignment needs exactly assign and value")
		}
		dest, err := p.operand(fields["assign"])
		if err != nil {
			return nil, err
		}
		place, ok := dest.(mir.Place)
		if !ok {
			return nil, p.errorf(fields["assign"], "cannot assign to %s", mir.OperandString(dest))
		}
		value, err := p.operand(fields["value"])
		if err != nil {
			return nil, err
		}
		return &mir.Assign{Dest: place, RHS: value}, nil
	case fields["invoke"] != nil:
		if fields["value"] != nil {
			return nil, p.errorf(n, "invoke takes args, not value")
		}
		name, err := p.str(fields["invoke"], "invoke")
		if err != nil {
			return nil, err
		}
		args, err := p.operands(fields["args"])
		if err != nil {
			return nil, err
		}
		return &mir.Invoke{Func: name, Args: args}, nil
	}
	return nil, p.errorf(n, "statement needs assign or invoke")
}

func (p *parser) operands(n *yaml.Node) ([]mir.Operand, error) {
	if n == nil {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, p.errorf(n, "args must be a list")
	}
	ops := make([]mir.Operand, 0, len(n.Content))
	for _, an := range n.Content {
		op, err := p.operand(an)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (p *parser) operand(n *yaml.Node) (mir.Operand, error) {
	if n.Kind == yaml.ScalarNode {
		if n.Tag == "!!str" {
			return &mir.LocalRef{Local: p.local(n.Value)}, nil
		}
		return p.literal(n)
	}
	fields, err := p.mapping(n, "local", "field", "base", "static", "lit", "op", "args", "cmp", "x", "y", "and", "or", "not")
	if err != nil {
		return nil, err
	}

	switch {
	case fields["local"] != nil:
		name, err := p.str(fields["local"], "local")
		if err != nil {
			return nil, err
		}
		return &mir.LocalRef{Local: p.local(name)}, p.only(n, fields, "local")
	case fields["field"] != nil:
		field, err := p.str(fields["field"], "field")
		if err != nil {
			return nil, err
		}
		base, err := p.str(fields["base"], "base")
		if err != nil {
			return nil, err
		}
		if base == "" {
			return nil, p.errorf(n, "field %s needs a base", field)
		}
		return &mir.FieldRef{Base: p.local(base), Field: field}, p.only(n, fields, "field", "base")
	case fields["static"] != nil:
		field, err := p.str(fields["static"], "static")
		if err != nil {
			return nil, err
		}
		return &mir.FieldRef{Field: field, Static: true}, p.only(n, fields, "static")
	case fields["lit"] != nil:
		if fields["lit"].Kind != yaml.ScalarNode {
			return nil, p.errorf(fields["lit"], "lit must be a scalar")
		}
		lit, err := p.literal(fields["lit"])
		if err != nil {
			return nil, err
		}
		return lit, p.only(n, fields, "lit")
	case fields["op"] != nil:
		name, err := p.str(fields["op"], "op")
		if err != nil {
			return nil, err
		}
		args, err := p.operands(fields["args"])
		if err != nil {
			return nil, err
		}
		return &mir.Op{Name: name, Args: args}, p.only(n, fields, "op", "args")
	case fields["cmp"] != nil, fields["and"] != nil, fields["or"] != nil, fields["not"] != nil:
		return p.condition(n)
	}
	return nil, p.errorf(n, "unrecognized operand")
}

// only rejects keys of an operand mapping that its kind does not use.
func (p *parser) only(n *yaml.Node, fields map[string]*yaml.Node, keys ...string) error {
	if len(fields) == len(keys) {
		return nil
	}
	return p.errorf(n, "operand mixes %d keys, want %v", len(fields), keys)
}

func (p *parser) literal(n *yaml.Node) (*mir.Literal, error) {
	switch n.Tag {
	case "!!int":
		var v int64
		if err := n.Decode(&v); err != nil {
			return nil, p.errorf(n, "invalid integer %s", n.Value)
		}
		return &mir.Literal{Value: v}, nil
	case "!!float":
		var v float64
		if err := n.Decode(&v); err != nil {
			return nil, p.errorf(n, "invalid number %s", n.Value)
		}
		return &mir.Literal{Value: v}, nil
	case "!!bool":
		var v bool
		if err := n.Decode(&v); err != nil {
			return nil, p.errorf(n, "invalid boolean %s", n.Value)
		}
		return &mir.Literal{Value: v}, nil
	case "!!null":
		return &mir.Literal{}, nil
	}
	return &mir.Literal{Value: n.Value}, nil
}

// condition parses a branch condition. Non-boolean operands are compared
// against false.
func (p *parser) condition(n *yaml.Node) (mir.Condition, error) {
	if n.Kind != yaml.MappingNode {
		op, err := p.operand(n)
		if err != nil {
			return nil, err
		}
		return truthy(op), nil
	}
	fields, err := p.mapping(n, "local", "field", "base", "static", "lit", "op", "args", "cmp", "x", "y", "and", "or", "not")
	if err != nil {
		return nil, err
	}

	switch {
	case fields["cmp"] != nil:
		spelling, err := p.str(fields["cmp"], "cmp")
		if err != nil {
			return nil, err
		}
		op, ok := mir.ParseCmpOp(spelling)
		if !ok {
			return nil, p.errorf(fields["cmp"], "unknown comparison %q", spelling)
		}
		if fields["x"] == nil || fields["y"] == nil {
			return nil, p.errorf(n, "comparison needs x and y")
		}
		x, err := p.operand(fields["x"])
		if err != nil {
			return nil, err
		}
		y, err := p.operand(fields["y"])
		if err != nil {
			return nil, err
		}
		return &mir.Compare{Op: op, X: x, Y: y}, p.only(n, fields, "cmp", "x", "y")
	case fields["and"] != nil:
		return p.compound(n, fields, "and", mir.And)
	case fields["or"] != nil:
		return p.compound(n, fields, "or", mir.Or)
	case fields["not"] != nil:
		x, err := p.condition(fields["not"])
		if err != nil {
			return nil, err
		}
		return &mir.Not{X: x}, p.only(n, fields, "not")
	}
	op, err := p.operand(n)
	if err != nil {
		return nil, err
	}
	return truthy(op), nil
}

func (p *parser) compound(n *yaml.Node, fields map[string]*yaml.Node, key string, op mir.LogicOp) (mir.Condition, error) {
	list := fields[key]
	if list.Kind != yaml.SequenceNode || len(list.Content) < 2 {
		return nil, p.errorf(list, "%s needs a list of at least two conditions", key)
	}
	var result mir.Condition
	for _, cn := range list.Content {
		c, err := p.condition(cn)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = c
			continue
		}
		result = &mir.Compound{Op: op, X: result, Y: c}
	}
	return result, p.only(n, fields, key)
}

func truthy(op mir.Operand) mir.Condition {
	if c, ok := op.(mir.Condition); ok {
		return c
	}
	return &mir.Compare{Op: mir.Ne, X: op, Y: &mir.Literal{Value: false}}
}
