package vm

import (
	"fmt"
	"sort"
	"strings"
)

// Category separates compile-time from evaluation-time faults.
type Category string

const (
	CategorySyntax  Category = "SyntaxError"
	CategoryRuntime Category = "RuntimeError"
)

// ErrorType is a closed tag identifying a specific fault.
type ErrorType string

// Syntax error types.
const (
	UnknownCharacter                          ErrorType = "UnknownCharacter"
	UnimplementedToken                        ErrorType = "UnimplementedToken"
	UnterminatedString                        ErrorType = "UnterminatedString"
	MissingBacktickToTerminateTemplateLiteral ErrorType = "MissingBacktickToTerminateTemplateLiteral"
	EmptyTemplateLiteralInterpolation         ErrorType = "EmptyTemplateLiteralInterpolation"
	MissingExpression                         ErrorType = "MissingExpression"
	UnexpectedToken                           ErrorType = "UnexpectedToken"
	MissingRightParenthesisAfterExpression    ErrorType = "MissingRightParenthesisAfterExpression"
	MissingRightParenthesisAfterFunctionCall  ErrorType = "MissingRightParenthesisAfterFunctionCall"
	MissingRightBracketAfterExpression        ErrorType = "MissingRightBracketAfterExpression"
	MissingLeftBraceToStartBlock              ErrorType = "MissingLeftBraceToStartBlock"
	MissingRightBraceToEndBlock               ErrorType = "MissingRightBraceToEndBlock"
	MissingIdentifier                         ErrorType = "MissingIdentifier"
	MissingSemicolon                          ErrorType = "MissingSemicolon"
	MissingInitializerInVariableDeclaration   ErrorType = "MissingInitializerInVariableDeclaration"
	MissingInitializerInConstDeclaration      ErrorType = "MissingInitializerInConstDeclaration"
	ConstInForLoopInit                        ErrorType = "ConstInForLoopInit"
	InvalidAssignmentTarget                   ErrorType = "InvalidAssignmentTarget"
	NestedFunctionDeclaration                 ErrorType = "NestedFunctionDeclaration"
	DuplicateParameterName                    ErrorType = "DuplicateParameterName"
	TrailingCommaInArray                      ErrorType = "TrailingCommaInArray"
	TrailingCommaInDictionary                 ErrorType = "TrailingCommaInDictionary"
	DuplicateDictionaryKey                    ErrorType = "DuplicateDictionaryKey"
	MissingColonInDictionary                  ErrorType = "MissingColonInDictionary"
	InvalidDictionaryKey                      ErrorType = "InvalidDictionaryKey"
	BlockRequired                             ErrorType = "BlockRequired"
	ClosingBraceNotOnOwnLine                  ErrorType = "ClosingBraceNotOnOwnLine"
	IncorrectIndentation                      ErrorType = "IncorrectIndentation"
	TabIndentation                            ErrorType = "TabIndentation"
	MultipleStatementsPerLine                 ErrorType = "MultipleStatementsPerLine"
	NodeNotAllowed                            ErrorType = "NodeNotAllowed"
	MissingColon                              ErrorType = "MissingColon"
	MissingIndent                             ErrorType = "MissingIndent"
	MissingEndAfterBlock                      ErrorType = "MissingEndAfterBlock"
	MissingDoToStartBlock                     ErrorType = "MissingDoToStartBlock"
	MissingToAfterVariableName                ErrorType = "MissingToAfterVariableName"
	MissingTimesInRepeat                      ErrorType = "MissingTimesInRepeat"
	MissingEachAfterFor                       ErrorType = "MissingEachAfterFor"
	MissingInAfterLoopVariable                ErrorType = "MissingInAfterLoopVariable"
	MissingWithBeforeParameters               ErrorType = "MissingWithBeforeParameters"
)

// Runtime error types.
const (
	VariableNotDeclared                  ErrorType = "VariableNotDeclared"
	VariableAlreadyDeclared              ErrorType = "VariableAlreadyDeclared"
	AssignmentToConstant                 ErrorType = "AssignmentToConstant"
	ShadowingDisabled                    ErrorType = "ShadowingDisabled"
	TruthinessDisabled                   ErrorType = "TruthinessDisabled"
	StrictEqualityRequired               ErrorType = "StrictEqualityRequired"
	TypeCoercionNotAllowed               ErrorType = "TypeCoercionNotAllowed"
	ComparisonRequiresNumber             ErrorType = "ComparisonRequiresNumber"
	OperandMustBeNumber                  ErrorType = "OperandMustBeNumber"
	ForOfLoopTargetNotIterable           ErrorType = "ForOfLoopTargetNotIterable"
	ForInLoopTargetNotObject             ErrorType = "ForInLoopTargetNotObject"
	BreakOutsideLoop                     ErrorType = "BreakOutsideLoop"
	ContinueOutsideLoop                  ErrorType = "ContinueOutsideLoop"
	ReturnOutsideFunction                ErrorType = "ReturnOutsideFunction"
	MaxIterationsReached                 ErrorType = "MaxIterationsReached"
	InfiniteLoopDetected                 ErrorType = "InfiniteLoopDetected"
	MaxCallDepthExceeded                 ErrorType = "MaxCallDepthExceeded"
	RepeatCountMustBeNumber              ErrorType = "RepeatCountMustBeNumber"
	RepeatCountMustBeNonNegative         ErrorType = "RepeatCountMustBeNonNegative"
	RepeatCountTooHigh                   ErrorType = "RepeatCountTooHigh"
	FunctionNotFound                     ErrorType = "FunctionNotFound"
	NotCallable                          ErrorType = "NotCallable"
	InvalidNumberOfArguments             ErrorType = "InvalidNumberOfArguments"
	TypeError                            ErrorType = "TypeError"
	IndexOutOfRange                      ErrorType = "IndexOutOfRange"
	IndexIsZeroBased                     ErrorType = "IndexIsZeroBased"
	PropertyNotFound                     ErrorType = "PropertyNotFound"
	InOperatorRequiresObject             ErrorType = "InOperatorRequiresObject"
	MethodNotYetImplemented              ErrorType = "MethodNotYetImplemented"
	MethodNotYetAvailable                ErrorType = "MethodNotYetAvailable"
	LogicErrorInExecution                ErrorType = "LogicErrorInExecution"
	FunctionExecutionError               ErrorType = "FunctionExecutionError"
	NonJikiObjectDetectedInExecution     ErrorType = "NonJikiObjectDetectedInExecution"
	ZeroDivisionError                    ErrorType = "ZeroDivisionError"
	AttributeError                       ErrorType = "AttributeError"
	IndexError                           ErrorType = "IndexError"
	KeyError                             ErrorType = "KeyError"
	ValueError                           ErrorType = "ValueError"
	VariableNotAccessibleInFunctionScope ErrorType = "VariableNotAccessibleInFunctionScope"
	UnexpectedUncalledFunction           ErrorType = "UnexpectedUncalledFunction"
	ExpressionIsNull                     ErrorType = "ExpressionIsNull"
	PointlessStatement                   ErrorType = "PointlessStatement"
	InternalError                        ErrorType = "InternalError"
)

// messageTemplates render an error's Context into its Message. Placeholders
// are written {key}.
var messageTemplates = map[ErrorType]string{
	UnknownCharacter:                          "Unknown character '{character}'.",
	UnimplementedToken:                        "'{token}' is not something you can use yet.",
	UnterminatedString:                        "This string is missing its closing quote.",
	MissingBacktickToTerminateTemplateLiteral: "This template literal is missing its closing backtick.",
	EmptyTemplateLiteralInterpolation:         "An interpolation ${} must contain an expression.",
	MissingExpression:                         "Expected an expression here.",
	UnexpectedToken:                           "Unexpected '{token}'.",
	MissingRightParenthesisAfterExpression:    "Expected ')' after the expression.",
	MissingRightParenthesisAfterFunctionCall:  "Expected ')' to close the call to {function}.",
	MissingRightBracketAfterExpression:        "Expected ']' after the expression.",
	MissingLeftBraceToStartBlock:              "Expected '{' to start a block.",
	MissingRightBraceToEndBlock:               "Expected '}' to end the block.",
	MissingIdentifier:                         "Expected a name here.",
	MissingSemicolon:                          "This statement must end with a semicolon.",
	MissingInitializerInVariableDeclaration:   "The variable {name} must be given a starting value.",
	MissingInitializerInConstDeclaration:      "The constant {name} must be given a value.",
	ConstInForLoopInit:                        "Use let, not const, to declare a for loop counter.",
	InvalidAssignmentTarget:                   "You can only assign to a variable or a property.",
	NestedFunctionDeclaration:                 "Functions can only be declared at the top level.",
	DuplicateParameterName:                    "The parameter {name} is listed more than once.",
	TrailingCommaInArray:                      "Remove the trailing comma in this list.",
	TrailingCommaInDictionary:                 "Remove the trailing comma in this dictionary.",
	DuplicateDictionaryKey:                    "The key {key} appears more than once.",
	MissingColonInDictionary:                  "Expected ':' after the dictionary key.",
	InvalidDictionaryKey:                      "Dictionary keys must be names, strings or numbers.",
	BlockRequired:                             "A block in curly braces must follow {statement}.",
	ClosingBraceNotOnOwnLine:                  "The closing brace must be on its own line.",
	IncorrectIndentation:                      "This line is indented by {actual} spaces but needs {expected}.",
	TabIndentation:                            "Use spaces, not tabs, to indent.",
	MultipleStatementsPerLine:                 "Line {line} has more than one statement.",
	NodeNotAllowed:                            "{nodeType} is not allowed in this exercise.",
	MissingColon:                              "Expected ':' at the end of this line.",
	MissingIndent:                             "The block after ':' must be indented.",
	MissingEndAfterBlock:                      "This block is missing its 'end'.",
	MissingDoToStartBlock:                     "Expected 'do' to start the block.",
	MissingToAfterVariableName:                "Expected 'to' after the variable name.",
	MissingTimesInRepeat:                      "Expected 'times' after the repeat count.",
	MissingEachAfterFor:                       "Expected 'each' after 'for'.",
	MissingInAfterLoopVariable:                "Expected 'in' after the loop variable.",
	MissingWithBeforeParameters:               "Expected 'with' before the parameters.",

	VariableNotDeclared:                  "The variable {name} has not been declared.",
	VariableAlreadyDeclared:              "The variable {name} has already been declared.",
	AssignmentToConstant:                 "{name} is a constant and cannot be changed.",
	ShadowingDisabled:                    "{name} already exists in an outer scope.",
	TruthinessDisabled:                   "Expected a boolean but got a {value}.",
	StrictEqualityRequired:               "Use {suggestion} instead of {operator}.",
	TypeCoercionNotAllowed:               "Cannot use {operator} with a {left} and a {right}.",
	ComparisonRequiresNumber:             "{operator} can only compare numbers, not a {left} and a {right}.",
	OperandMustBeNumber:                  "{operator} needs numbers, but got a {value}.",
	ForOfLoopTargetNotIterable:           "Cannot loop over a {type}.",
	ForInLoopTargetNotObject:             "Cannot loop over the keys of a {type}.",
	BreakOutsideLoop:                     "break can only be used inside a loop.",
	ContinueOutsideLoop:                  "continue can only be used inside a loop.",
	ReturnOutsideFunction:                "return can only be used inside a function.",
	MaxIterationsReached:                 "The loops ran more than {max} times in total.",
	InfiniteLoopDetected:                 "The game loop ran {max} times without the exercise finishing.",
	MaxCallDepthExceeded:                 "Functions were nested more than {max} calls deep.",
	RepeatCountMustBeNumber:              "repeat needs a number, but got a {type}.",
	RepeatCountMustBeNonNegative:         "repeat cannot run {count} times.",
	RepeatCountTooHigh:                   "repeat cannot run more than {max} times.",
	FunctionNotFound:                     "There is no function called {name}.",
	NotCallable:                          "A {type} cannot be called.",
	InvalidNumberOfArguments:             "{name} expects {expected} arguments but got {actual}.",
	TypeError:                            "{message}",
	IndexOutOfRange:                      "Index {index} is outside the list of length {length}.",
	IndexIsZeroBased:                     "Indexes start at 1, not 0.",
	PropertyNotFound:                     "There is no property called {property}.",
	InOperatorRequiresObject:             "The right side of 'in' must be an object, not a {type}.",
	MethodNotYetImplemented:              "{name} is not implemented yet.",
	MethodNotYetAvailable:                "{name} is not available in this exercise.",
	LogicErrorInExecution:                "{message}",
	FunctionExecutionError:               "{name} failed: {message}",
	NonJikiObjectDetectedInExecution:     "{name} returned a value that cannot be used here.",
	ZeroDivisionError:                    "division by zero",
	AttributeError:                       "'{type}' object has no attribute '{attribute}'",
	IndexError:                           "{type} index out of range",
	KeyError:                             "{key}",
	ValueError:                           "{message}",
	VariableNotAccessibleInFunctionScope: "{name} is not available inside this function.",
	UnexpectedUncalledFunction:           "Did you mean to call {name}? Add parentheses.",
	ExpressionIsNull:                     "This expression has no value.",
	PointlessStatement:                   "This line does nothing.",
	InternalError:                        "Internal error: {message}",
}

// FormatMessage renders the message template for typ with ctx.
func FormatMessage(typ ErrorType, ctx map[string]any) string {
	tmpl, ok := messageTemplates[typ]
	if !ok {
		tmpl = string(typ)
	}
	if len(ctx) == 0 {
		return tmpl
	}
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 6*len(keys))
	for _, k := range keys {
		if s, ok := ctx[k].(string); ok && s != "" {
			art := WithArticle(s)
			pairs = append(pairs,
				" a {"+k+"}", " "+art,
				"A {"+k+"}", strings.ToUpper(art[:1])+art[1:])
		}
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(ctx[k]))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// WithArticle prefixes word with "a" or "an".
func WithArticle(word string) string {
	if word != "" && strings.ContainsRune("aeiouAEIOU", rune(word[0])) {
		return "an " + word
	}
	return "a " + word
}

// KnownErrorType reports whether typ belongs to the closed set.
func KnownErrorType(typ ErrorType) bool {
	_, ok := messageTemplates[typ]
	return ok
}

// SyntaxError is reported by Compile. Execution never starts.
type SyntaxError struct {
	Type     ErrorType      `json:"type" cbor:"1,keyasint"`
	Message  string         `json:"message" cbor:"2,keyasint"`
	Location Span           `json:"location" cbor:"3,keyasint"`
	Context  map[string]any `json:"context,omitempty" cbor:"4,keyasint,omitempty"`
}

// NewSyntaxError builds a SyntaxError with its rendered message.
func NewSyntaxError(typ ErrorType, loc Span, ctx map[string]any) *SyntaxError {
	return &SyntaxError{Type: typ, Message: FormatMessage(typ, ctx), Location: loc, Context: ctx}
}

func (e *SyntaxError) Category() Category { return CategorySyntax }

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s: %s", e.Location.Start.Line, e.Type, e.Message)
}

// RuntimeError halts a run; it is surfaced only on the last frame.
type RuntimeError struct {
	Type     ErrorType      `json:"type" cbor:"1,keyasint"`
	Message  string         `json:"message" cbor:"2,keyasint"`
	Location Span           `json:"location" cbor:"3,keyasint"`
	Context  map[string]any `json:"context,omitempty" cbor:"4,keyasint,omitempty"`
}

// NewRuntimeError builds a RuntimeError with its rendered message.
func NewRuntimeError(typ ErrorType, loc Span, ctx map[string]any) *RuntimeError {
	return &RuntimeError{Type: typ, Message: FormatMessage(typ, ctx), Location: loc, Context: ctx}
}

func (e *RuntimeError) Category() Category { return CategoryRuntime }

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("line %d: %s: %s", e.Location.Start.Line, e.Type, e.Message)
}

// LogicError is returned by an external function to halt the run with an
// exercise-specific message.
type LogicError struct {
	Message string
}

func NewLogicError(format string, args ...any) *LogicError {
	return &LogicError{Message: fmt.Sprintf(format, args...)}
}

func (e *LogicError) Error() string { return e.Message }
