// Package testutil provides shared fixtures for package tests: a small
// brewery shape registry, the matching CUE shape source and GraphQL schema.
//
// The fixtures are built fresh on every call so tests can mutate them freely.
package testutil

import (
	"github.com/roach88/shapeql/internal/shape"
)

// Vocabulary used by the fixtures.
const (
	EX     = "https://example.org/beer#"
	Schema = "http://schema.org/"
	RDFS   = "http://www.w3.org/2000/01/rdf-schema#"

	ClassBrewery = EX + "Brewery"
	ClassBeer    = EX + "Beer"
	ClassAddress = Schema + "PostalAddress"
	ClassSite    = EX + "Site"

	XSDDate    = "http://www.w3.org/2001/XMLSchema#date"
	XSDInteger = "http://www.w3.org/2001/XMLSchema#integer"
)

func pred(iri string) shape.Path {
	return shape.PredicatePath{IRI: iri}
}

// BreweryShapes returns unlinked shapes for Brewery, Beer, Address and Site.
//
// Brewery.address and Brewery.site share the schema:location predicate but
// target different classes, which exercises polymorphic disambiguation.
func BreweryShapes() []*shape.Shape {
	brewery := &shape.Shape{
		Name:          "Brewery",
		TargetClasses: []string{ClassBrewery},
		Properties: map[string]*shape.PropertyShape{
			"identifier": {Path: pred(EX + "identifier"), MinCount: 1},
			"name":       {Path: pred(Schema + "name"), MinCount: 1},
			"label":      {Path: pred(RDFS + "label"), Datatype: shape.RDFLangString},
			"founded":    {Path: pred(EX + "founded"), Datatype: XSDDate},
			"employees":  {Path: pred(EX + "employees"), Datatype: XSDInteger},
			"owners":     {Path: pred(EX + "owners")},
			"address":    {Path: pred(Schema + "location"), NodeRef: "Address"},
			"site":       {Path: pred(Schema + "location"), NodeRef: "Site"},
			"beers":      {Path: shape.InversePath{Path: pred(EX + "brewery")}, NodeRef: "Beer"},
			"homepage":   {Path: pred(Schema + "url"), NodeKind: shape.NodeKindIRI},
		},
	}

	beer := &shape.Shape{
		Name:          "Beer",
		TargetClasses: []string{ClassBeer},
		Properties: map[string]*shape.PropertyShape{
			"identifier": {Path: pred(EX + "identifier"), MinCount: 1},
			"name":       {Path: pred(Schema + "name"), MinCount: 1},
			"style":      {Path: pred(EX + "style")},
			"brewery":    {Path: pred(EX + "brewery"), NodeRef: "Brewery", MinCount: 1},
			"ingredients": {Path: shape.SequencePath{Paths: []shape.Path{
				pred(EX + "recipe"),
				pred(EX + "ingredient"),
			}}},
		},
	}

	address := &shape.Shape{
		Name:          "Address",
		TargetClasses: []string{ClassAddress},
		Properties: map[string]*shape.PropertyShape{
			"street":     {Path: pred(Schema + "streetAddress")},
			"city":       {Path: pred(Schema + "addressLocality")},
			"postalCode": {Path: pred(Schema + "postalCode")},
		},
	}

	site := &shape.Shape{
		Name:          "Site",
		TargetClasses: []string{ClassSite},
		Properties: map[string]*shape.PropertyShape{
			"area": {Path: pred(EX + "area"), Datatype: XSDInteger},
		},
	}

	return []*shape.Shape{brewery, beer, address, site}
}

// BreweryRegistry returns a linked registry over BreweryShapes.
func BreweryRegistry() *shape.Registry {
	r, err := shape.NewRegistry(BreweryShapes()...)
	if err != nil {
		panic(err)
	}
	return r
}

// BreweryCUE is BreweryShapes written in the CUE shape format.
const BreweryCUE = `
shape: Brewery: {
	targetClass: ["https://example.org/beer#Brewery"]
	property: {
		identifier: {path: "https://example.org/beer#identifier", minCount: 1}
		name: {path: "http://schema.org/name", minCount: 1}
		label: {path: "http://www.w3.org/2000/01/rdf-schema#label", datatype: "http://www.w3.org/1999/02/22-rdf-syntax-ns#langString"}
		founded: {path: "https://example.org/beer#founded", datatype: "http://www.w3.org/2001/XMLSchema#date"}
		employees: {path: "https://example.org/beer#employees", datatype: "http://www.w3.org/2001/XMLSchema#integer"}
		owners: {path: "https://example.org/beer#owners"}
		address: {path: "http://schema.org/location", node: "Address"}
		site: {path: "http://schema.org/location", node: "Site"}
		beers: {path: {inverse: "https://example.org/beer#brewery"}, node: "Beer"}
		homepage: {path: "http://schema.org/url", nodeKind: "IRI"}
	}
}

shape: Beer: {
	targetClass: ["https://example.org/beer#Beer"]
	property: {
		identifier: {path: "https://example.org/beer#identifier", minCount: 1}
		name: {path: "http://schema.org/name", minCount: 1}
		style: {path: "https://example.org/beer#style"}
		brewery: {path: "https://example.org/beer#brewery", node: "Brewery", minCount: 1}
		ingredients: {path: {sequence: ["https://example.org/beer#recipe", "https://example.org/beer#ingredient"]}}
	}
}

shape: Address: {
	targetClass: ["http://schema.org/PostalAddress"]
	property: {
		street: {path: "http://schema.org/streetAddress"}
		city: {path: "http://schema.org/addressLocality"}
		postalCode: {path: "http://schema.org/postalCode"}
	}
}

shape: Site: {
	targetClass: ["https://example.org/beer#Site"]
	property: {
		area: {path: "https://example.org/beer#area", datatype: "http://www.w3.org/2001/XMLSchema#integer"}
	}
}
`

// BrewerySDL is the GraphQL schema matching BreweryShapes. The @sparql,
// @filter and @constraint directive definitions are added by the loader.
const BrewerySDL = `
type Query {
  breweries(
    name: String @filter(field: "name")
    city: String @filter(field: "address.city")
    cities: [String!] @filter(field: "address.city", operator: "in")
    foundedAfter: String @filter(field: "founded", operator: ">")
    where: BreweryFilter
    sort: [SortField!]
    first: Int = 10 @constraint(min: 1, max: 100)
    skip: Int = 0
  ): [Brewery!]! @sparql(repository: "local", limit: "first", offset: "skip", orderBy: "sort", distinct: true)

  brewery(identifier: ID!): Brewery @sparql(repository: "local", subject: "\"https://example.org/id/brewery/\\(identifier)\"")

  beers(
    style: String @filter(field: "style") @constraint(oneOf: ["ipa", "stout", "lager"])
    first: Int
  ): [Beer!]! @sparql(repository: "local", limit: "first")
}

input BreweryFilter {
  owner: String @filter(field: "owners")
  postalCode: String @filter(field: "address.postalCode") @constraint(pattern: "^[0-9]{4}[A-Z]{2}$")
}

input SortField {
  field: String!
  order: String
}

type Brewery {
  identifier: ID!
  name: String!
  label: String
  founded: String
  employees: Int
  owners: [String!]
  address: Address
  site: Site
  beers(style: String @filter(field: "style")): [Beer!]
  homepage: String
}

type Beer {
  identifier: ID!
  name: String!
  style: String
  brewery: Brewery!
  ingredients: [String!]
}

type Address {
  street: String
  city: String
  postalCode: String
}

type Site {
  area: Int
}
`
