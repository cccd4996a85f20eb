package cfg

// Tree-sitter node kinds recognized by the builder and the extractor.
// The TypeScript, TSX and JavaScript grammars share these names.
const (
	NodeIdentifier       = "identifier"
	NodeMemberExpression = "member_expression"
	NodeCallExpression   = "call_expression"
	NodeDecorator        = "decorator"

	NodeIfStatement     = "if_statement"
	NodeForStatement    = "for_statement"
	NodeForInStatement  = "for_in_statement"
	NodeWhileStatement  = "while_statement"
	NodeDoStatement     = "do_statement"
	NodeReturnStatement = "return_statement"

	NodeFunctionDeclaration          = "function_declaration"
	NodeGeneratorFunctionDeclaration = "generator_function_declaration"
	NodeClassDeclaration             = "class_declaration"
	NodeAbstractClassDeclaration     = "abstract_class_declaration"
	NodeClass                        = "class"
	NodeExportStatement              = "export_statement"
	NodeLexicalDeclaration           = "lexical_declaration"
	NodeVariableDeclaration          = "variable_declaration"
	NodeVariableDeclarator           = "variable_declarator"
	NodeAssignmentExpression         = "assignment_expression"
	NodeMethodDefinition             = "method_definition"
	NodeConstructor                  = "constructor"
	NodePublicFieldDefinition        = "public_field_definition"
	NodePrivateFieldDefinition       = "private_field_definition"
	NodeFieldDefinition              = "field_definition"

	NodeArrowFunction      = "arrow_function"
	NodeFunction           = "function"
	NodeFunctionExpression = "function_expression"
)

// Field names used for named-child lookup.
const (
	FieldName     = "name"
	FieldBody     = "body"
	FieldLeft     = "left"
	FieldRight    = "right"
	FieldObject   = "object"
	FieldProperty = "property"
	FieldFunction = "function"
	FieldKey      = "key"
	FieldValue    = "value"
)

// IsLoop reports whether kind is a loop statement.
func IsLoop(kind string) bool {
	switch kind {
	case NodeForStatement, NodeForInStatement, NodeWhileStatement, NodeDoStatement:
		return true
	}
	return false
}

// IsFunctionValue reports whether kind is a function-valued expression.
func IsFunctionValue(kind string) bool {
	switch kind {
	case NodeArrowFunction, NodeFunction, NodeFunctionExpression:
		return true
	}
	return false
}
