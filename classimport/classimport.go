// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package classimport implements the Class Descriptor Importer (CDI):
// building class/module descriptors from declarative annotations on host
// classes, enforcing spec.md §4.4's load-time rules, and populating the
// domain-global symbol table that the Type Resolver (TR) queries.
package classimport

import (
	"fmt"

	"github.com/abcnative/abccompile/resolve"
	"go.uber.org/zap"
)

// restSentinel marks a method's trailing variadic parameter: spec.md §4.4,
// "the last parameter may be of the rest type to denote variadic".
const restSentinel = "..."

// MemberRecord is the static, build-time description of one exported
// trait on a host class (spec.md §4.4's source for "declarative
// annotations on host classes"): a field, method, property accessor,
// constant, or slot.
type MemberRecord struct {
	Name          string
	Kind          resolve.MemberKind
	IsConstructor bool

	// Type names a field/const/slot's type, or a getter's return type, or
	// a setter's single parameter type. Accepted spellings: "int", "uint",
	// "Number", "Boolean", "String", "*" (any), or a fully qualified host
	// class name ("uri::Local" or bare "Local").
	Type string

	// ParamTypes is a method's parameter type list. restSentinel as the
	// last entry denotes a variadic trailing parameter.
	ParamTypes []string
	// ParamMeta carries one raw metadata-tag string per parameter
	// (possibly empty), inspected for an [Optional] or [Optional(default=...)]
	// annotation (spec.md §4.4: "a parameter may be optional only via the
	// optional wrapper or a default-value annotation").
	ParamMeta []string
	// ReturnType is a method's return type; "" or "void" means void.
	ReturnType string

	Exported bool
	Meta     string // raw metadata-tag text attached to this member itself
}

// ClassRecord is the static, build-time description of one exported host
// class: name, namespace, members, and tags (SPEC_FULL.md §4.4, "a
// static record ... generated once and walked by CDI").
type ClassRecord struct {
	QName           resolve.QName
	SuperQName      resolve.QName
	HasSuper        bool
	InterfaceQNames []resolve.QName

	IsInterface  bool
	IsGeneric    bool
	IsVectorBase bool // the one exception to "non-generic" (spec.md §4.4)
	IsNested     bool
	IsAbstract   bool
	Exported     bool

	Members []MemberRecord
	Meta    string
}

// Options configures an Importer: the fixed table of host class records
// and the qualified name of the AS object root every concrete class must
// descend from.
type Options struct {
	Classes         []ClassRecord
	ObjectRootQName resolve.QName
}

func qnameKey(qn resolve.QName) string {
	return fmt.Sprintf("%d\x00%s\x00%s", qn.Kind, qn.URI, qn.Local)
}

// Importer builds resolve.ClassDesc values from a fixed table of
// ClassRecords, implementing resolve.NativeSource. It must be linked to
// the resolve.Resolver that owns it via SetResolver before first use,
// since building one class may need to resolve another through the same
// resolver (spec.md §4.3's "dependency closure").
type Importer struct {
	opts    Options
	byQName map[string]*ClassRecord

	resolver *resolve.Resolver
}

// NewImporter builds the registry from opts. Class records are indexed by
// qualified name; duplicate names keep the first entry (registration
// order is caller-controlled, as with a generated descriptor table).
func NewImporter(opts Options) *Importer {
	im := &Importer{opts: opts, byQName: make(map[string]*ClassRecord, len(opts.Classes))}
	for i := range opts.Classes {
		rec := &opts.Classes[i]
		key := qnameKey(rec.QName)
		if _, exists := im.byQName[key]; !exists {
			im.byQName[key] = rec
		}
	}
	return im
}

// SetResolver links im to the resolver that will consult it for classes
// not already present in the domain. Call once, before first resolution.
func (im *Importer) SetResolver(r *resolve.Resolver) { im.resolver = r }

// BuildNative implements resolve.NativeSource.
func (im *Importer) BuildNative(qn resolve.QName) (*resolve.ClassDesc, error) {
	rec, ok := im.byQName[qnameKey(qn)]
	if !ok {
		return nil, errf(KindNotRegistered, qn.String(), "no native class registered for this qualified name")
	}
	return im.build(rec)
}

func (im *Importer) build(rec *ClassRecord) (*resolve.ClassDesc, error) {
	name := rec.QName.String()

	if rec.IsGeneric && !rec.IsVectorBase {
		return nil, errf(KindGeneric, name, "class must be non-generic, except the internal vector base")
	}
	if rec.IsNested {
		return nil, errf(KindNested, name, "class must not be nested")
	}
	if rec.IsAbstract && !rec.IsInterface {
		return nil, errf(KindAbstractClass, name, "a concrete class must not be abstract")
	}
	if !rec.Exported {
		return nil, errf(KindNotPublic, name, "class must have public visibility")
	}
	if rec.Meta != "" {
		if _, err := ParseTags(rec.Meta); err != nil {
			return nil, err
		}
	}

	tag := resolve.TagObject
	if rec.IsInterface {
		tag = resolve.TagInterface
	}
	cd := &resolve.ClassDesc{
		QName:    rec.QName,
		Tag:      tag,
		Exported: rec.Exported,
		Members:  make(map[string]*resolve.Member, len(rec.Members)),
	}

	isRoot := rec.QName.Equal(im.opts.ObjectRootQName)
	if rec.HasSuper {
		super, err := im.resolver.Resolve(rec.SuperQName)
		if err != nil {
			return nil, err
		}
		cd.Super = super
	} else if !rec.IsInterface && !isRoot {
		root, err := im.resolver.Resolve(im.opts.ObjectRootQName)
		if err != nil {
			return nil, err
		}
		cd.Super = root
	}

	if !rec.IsInterface && !isRoot {
		if !descendsFromRoot(cd, im.opts.ObjectRootQName) {
			return nil, errf(KindMissingObjectRoot, name, "class must descend from the AS object root")
		}
	}

	for _, iqn := range rec.InterfaceQNames {
		iface, err := im.resolver.Resolve(iqn)
		if err != nil {
			return nil, err
		}
		cd.Interfaces = append(cd.Interfaces, iface)
	}

	ctorCount := 0
	for _, m := range rec.Members {
		if m.IsConstructor {
			ctorCount++
		}
	}
	if ctorCount > 1 {
		return nil, errf(KindMultipleConstructors, name, "a class may export at most one constructor")
	}

	getters := make(map[string]*resolve.Member)
	setters := make(map[string]*resolve.Member)

	for _, mrec := range rec.Members {
		member, err := im.buildMember(name, mrec)
		if err != nil {
			return nil, err
		}
		// Getter and setter share a property name but are distinct traits;
		// key them apart so one does not overwrite the other.
		switch mrec.Kind {
		case resolve.MemberGetter:
			cd.Members["get "+mrec.Name] = member
			getters[mrec.Name] = member
		case resolve.MemberSetter:
			cd.Members["set "+mrec.Name] = member
			setters[mrec.Name] = member
		default:
			cd.Members[mrec.Name] = member
		}
	}

	for pname, g := range getters {
		s, ok := setters[pname]
		if !ok {
			continue
		}
		if g.Type != s.Type {
			return nil, errf(KindAccessorSignatureMismatch, name,
				"property %q: getter return type does not match setter parameter type", pname)
		}
	}

	if rec.IsInterface {
		if err := resolve.ValidateInterface(cd, nil); err != nil {
			return nil, err
		}
	}

	Logger.Info("class descriptor imported", zap.String("class", name))
	return cd, nil
}

// descendsFromRoot reports whether cd's super chain reaches the class
// named rootQName.
func descendsFromRoot(cd *resolve.ClassDesc, rootQName resolve.QName) bool {
	for s := cd.Super; s != nil; s = s.Super {
		if s.QName.Equal(rootQName) {
			return true
		}
	}
	return false
}

func (im *Importer) buildMember(className string, mrec MemberRecord) (*resolve.Member, error) {
	if mrec.Meta != "" {
		if _, err := ParseTags(mrec.Meta); err != nil {
			return nil, err
		}
	}
	member := &resolve.Member{Name: mrec.Name, Kind: mrec.Kind, Exported: mrec.Exported}

	switch mrec.Kind {
	case resolve.MemberField, resolve.MemberConst, resolve.MemberSlot:
		t, err := im.resolveMemberType(className, mrec.Type, false)
		if err != nil {
			return nil, err
		}
		member.Type = t

	case resolve.MemberGetter:
		t, err := im.resolveMemberType(className, mrec.Type, false)
		if err != nil {
			return nil, err
		}
		member.Type = t
		member.ReturnType = t

	case resolve.MemberSetter:
		t, err := im.resolveMemberType(className, mrec.Type, false)
		if err != nil {
			return nil, err
		}
		member.Type = t
		member.ParamTypes = []*resolve.ClassDesc{t}

	case resolve.MemberMethod:
		params := make([]*resolve.ClassDesc, 0, len(mrec.ParamTypes))
		optionalSeen := false
		for i, pt := range mrec.ParamTypes {
			if pt == restSentinel {
				if i != len(mrec.ParamTypes)-1 {
					return nil, errf(KindRestParamPosition, className, "rest parameter must be last, in method %q", mrec.Name)
				}
				params = append(params, resolve.AnyType)
				continue
			}
			t, err := im.resolveMemberType(className, pt, false)
			if err != nil {
				return nil, err
			}
			opt := paramIsOptional(mrec.ParamMeta, i)
			if !opt && optionalSeen {
				return nil, errf(KindOptionalParamOrder, className,
					"parameter %d of method %q follows an optional parameter but is not itself optional", i, mrec.Name)
			}
			optionalSeen = optionalSeen || opt
			params = append(params, t)
		}
		ret, err := im.resolveMemberType(className, mrec.ReturnType, true)
		if err != nil {
			return nil, err
		}
		member.ParamTypes = params
		if ret != resolve.VoidType {
			member.ReturnType = ret
		}
	}
	return member, nil
}

// paramIsOptional reports whether parameter i carries an [Optional] (or
// [Optional(default=...)]) annotation, per spec.md §4.4.
func paramIsOptional(meta []string, i int) bool {
	if i >= len(meta) || meta[i] == "" {
		return false
	}
	tags, err := ParseTags(meta[i])
	if err != nil {
		return false
	}
	return tags.Has("Optional")
}

// resolveMemberType resolves a type name against spec.md §4.4's allowed
// set: the closed primitive set, the any-type, "void" (only when
// allowVoid), or an exported class descriptor.
func (im *Importer) resolveMemberType(className, typeName string, allowVoid bool) (*resolve.ClassDesc, error) {
	if typeName == "" {
		if allowVoid {
			return resolve.VoidType, nil
		}
		return nil, errf(KindDisallowedMemberType, className, "empty type name where a concrete type is required")
	}
	if typeName == "*" {
		return resolve.AnyType, nil
	}
	if typeName == "void" {
		if !allowVoid {
			return nil, errf(KindDisallowedMemberType, className, "void is only allowed as a return type")
		}
		return resolve.VoidType, nil
	}
	if p, ok := resolve.PrimitiveType(typeName); ok {
		return p, nil
	}

	qn := resolve.SplitQName(typeName)
	cd, err := im.resolver.Resolve(qn)
	if err != nil {
		return nil, err
	}
	if !cd.Exported {
		return nil, errf(KindDisallowedMemberType, className, "type %s is not exported", typeName)
	}
	return cd, nil
}
